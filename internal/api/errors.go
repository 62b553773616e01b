package api

import (
	"mission_rewards/internal/apperr"
	"mission_rewards/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err in the uniform error envelope. Errors outside the
// apperr taxonomy are logged and reported as internal without detail.
func respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		logger.Logger().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Kind.HTTPStatus(), e.Body())
}

func badRequest(c *gin.Context, message string) {
	respondError(c, apperr.ErrValidation.WithMessage(message))
}
