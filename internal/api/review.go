package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"mission_rewards/internal/middleware"
	"mission_rewards/internal/service"
	"mission_rewards/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const idempotencyHeader = "Idempotency-Key"

type reviewRoutes struct {
	gw service.ReviewGatewayI
}

func NewReviewRoutes(handler *gin.RouterGroup, gw service.ReviewGatewayI, tokens *auth.ReviewerTokens, authz *middleware.Authorization) {
	h := &reviewRoutes{gw: gw}

	review := handler.Group("/review")
	review.Use(tokens.ReviewerAuthMiddleware(), authz.ReviewerOnly())
	{
		review.GET("/runs", h.ListPending)
		review.POST("/runs/:run_id/approve", h.Approve)
		review.POST("/runs/:run_id/reject", h.Reject)
		review.POST("/codes", h.IssueCode)
	}
}

type rejectRequest struct {
	Reason *string `json:"reason"`
}

type issueCodeRequest struct {
	MissionID  string `json:"mission_id" binding:"required"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type approveResponse struct {
	Run         runResponse         `json:"run"`
	Transaction transactionResponse `json:"transaction"`
}

type issueCodeResponse struct {
	TokenID   string `json:"token_id"`
	MissionID string `json:"mission_id"`
	PlaceID   string `json:"place_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *reviewRoutes) ListPending(c *gin.Context) {
	reviewerID, ok := auth.RequireReviewer(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.gw.ListPendingReview(c.Request.Context(), reviewerID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]runResponse, len(runs))
	for i, run := range runs {
		resp[i] = newRunResponse(run)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *reviewRoutes) Approve(c *gin.Context) {
	reviewerID, ok := auth.RequireReviewer(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if key == "" {
		badRequest(c, "Idempotency-Key header is required")
		return
	}

	out, err := h.gw.Approve(c.Request.Context(), reviewerID, runID, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approveResponse{
		Run:         newRunResponse(out.Run),
		Transaction: newTransactionResponse(out.Transaction),
	})
}

func (h *reviewRoutes) Reject(c *gin.Context) {
	reviewerID, ok := auth.RequireReviewer(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	run, err := h.gw.Reject(c.Request.Context(), reviewerID, runID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunResponse(run))
}

func (h *reviewRoutes) IssueCode(c *gin.Context) {
	reviewerID, ok := auth.RequireReviewer(c)
	if !ok {
		return
	}

	var req issueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mission_id is required")
		return
	}
	missionID, err := uuid.Parse(req.MissionID)
	if err != nil {
		badRequest(c, "invalid mission_id")
		return
	}
	if req.TTLSeconds < 0 {
		badRequest(c, "ttl_seconds must not be negative")
		return
	}

	issued, err := h.gw.IssueCode(c.Request.Context(), reviewerID, missionID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issueCodeResponse{
		TokenID:   issued.Token.ID.String(),
		MissionID: issued.Token.MissionID.String(),
		PlaceID:   issued.Token.PlaceID.String(),
		Token:     issued.Raw,
		ExpiresAt: issued.Token.ExpiresAt.Unix(),
	})
}
