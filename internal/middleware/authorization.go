package middleware

import (
	"context"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"
	"mission_rewards/pkg/auth"
	"mission_rewards/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PermissionChecker interface {
	HasPermission(ctx context.Context, reviewerID int64, perm model.Permission) (bool, error)
}

type Authorization struct {
	perms PermissionChecker
}

func NewAuthorization(perms PermissionChecker) *Authorization {
	return &Authorization{
		perms: perms,
	}
}

// ReviewerOnly admits authenticated reviewers holding at least read access.
// Finer permissions are checked per action.
func (a *Authorization) ReviewerOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		reviewerID, ok := auth.ReviewerID(c)
		if !ok {
			log.Error("reviewer id not found in context")
			abort(c, apperr.ErrUnauthenticated)
			return
		}

		allowed, err := a.perms.HasPermission(c.Request.Context(), reviewerID, model.PermRunsRead)
		if err != nil {
			log.Error("failed to check reviewer permission", zap.Error(err))
			abort(c, apperr.ErrInternal)
			return
		}

		if !allowed {
			log.Info("unauthorized access attempt to review endpoint",
				zap.Int64("reviewer_id", reviewerID))
			abort(c, apperr.ErrForbidden.WithMessage("reviewer access required"))
			return
		}

		c.Next()
	}
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.Kind.HTTPStatus(), err.Body())
}
