package api

import (
	"context"
	"net/http"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"
	"mission_rewards/internal/service"
	"mission_rewards/pkg/auth"
	"mission_rewards/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RunWatcher streams run transitions over a websocket.
type RunWatcher interface {
	Serve(ctx context.Context, conn *websocket.Conn, runID uuid.UUID, initial *model.MissionRun)
}

type runRoutes struct {
	runs    service.RunServiceI
	watcher RunWatcher
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewRunRoutes(handler *gin.RouterGroup, runs service.RunServiceI, watcher RunWatcher, a *auth.TelegramAuth) {
	h := &runRoutes{runs: runs, watcher: watcher}

	r := handler.Group("/runs")
	r.Use(a.TelegramAuthMiddleware())
	{
		r.POST("", h.CreateRun)
		r.GET("/:run_id", h.GetRun)
		r.POST("/:run_id/location", h.VerifyLocation)
		r.POST("/:run_id/code", h.VerifyCode)
		r.POST("/:run_id/social", h.VerifySocialProof)
		if watcher != nil {
			r.GET("/:run_id/ws", h.Watch)
		}
	}
}

type createRunRequest struct {
	MissionID string `json:"mission_id" binding:"required"`
}

type locationRequest struct {
	Latitude   *float64          `json:"latitude" binding:"required"`
	Longitude  *float64          `json:"longitude" binding:"required"`
	Accuracy   float64           `json:"accuracy" binding:"required"`
	Timestamp  time.Time         `json:"timestamp" binding:"required"`
	Provider   string            `json:"provider"`
	IsMock     bool              `json:"is_mock"`
	DeviceInfo map[string]string `json:"device_info"`
}

type codeRequest struct {
	Token string `json:"token" binding:"required"`
}

type socialRequest struct {
	Platform string   `json:"platform" binding:"required"`
	PostURL  string   `json:"post_url" binding:"required"`
	Caption  string   `json:"caption"`
	Tags     []string `json:"tags"`
}

func currentUser(c *gin.Context) (int64, bool) {
	u, ok := auth.TelegramUser(c)
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return 0, false
	}
	return u.ID, true
}

func runIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		badRequest(c, "invalid run_id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *runRoutes) CreateRun(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mission_id is required")
		return
	}
	missionID, err := uuid.Parse(req.MissionID)
	if err != nil {
		badRequest(c, "invalid mission_id")
		return
	}

	run, err := h.runs.CreateRun(c.Request.Context(), userID, missionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRunResponse(run))
}

func (h *runRoutes) GetRun(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	run, err := h.runs.GetStatus(c.Request.Context(), runID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunResponse(run))
}

func (h *runRoutes) VerifyLocation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "latitude, longitude, accuracy and timestamp are required")
		return
	}

	run, err := h.runs.VerifyLocation(c.Request.Context(), runID, userID, model.LocationFix{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Accuracy:   req.Accuracy,
		CapturedAt: req.Timestamp,
		Provider:   req.Provider,
		IsMock:     req.IsMock,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunResponse(run))
}

func (h *runRoutes) VerifyCode(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token is required")
		return
	}

	run, err := h.runs.VerifyCode(c.Request.Context(), runID, userID, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunResponse(run))
}

func (h *runRoutes) VerifySocialProof(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	var req socialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "platform and post_url are required")
		return
	}

	run, err := h.runs.VerifySocialProof(c.Request.Context(), runID, userID, model.SocialProof{
		Platform: req.Platform,
		PostURL:  req.PostURL,
		Caption:  req.Caption,
		Tags:     req.Tags,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunResponse(run))
}

// Watch upgrades to a websocket that receives every transition of the run.
func (h *runRoutes) Watch(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}

	run, err := h.runs.GetStatus(c.Request.Context(), runID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Logger().Info("websocket upgrade failed", zap.Error(err))
		return
	}
	h.watcher.Serve(c.Request.Context(), conn, runID, run)
}
