package auth

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
)

const (
	expTime = 24 * time.Hour

	telegramUserKey = "telegram_user"
)

type TelegramAuth struct {
	botToken  string
	debugMode bool
}

func NewTelegramAuth(botToken string, debugMode bool) *TelegramAuth {
	return &TelegramAuth{
		botToken:  botToken,
		debugMode: debugMode,
	}
}

// TelegramAuthMiddleware authenticates mini app users by their signed init data.
// With debugMode the signature is not checked.
func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			abort(c, apperr.ErrUnauthenticated.WithMessage("authorization header is required"))
			return
		}

		if !strings.HasPrefix(authHeader, "Telegram ") {
			log.Info("invalid authorization header format")
			abort(c, apperr.ErrUnauthenticated.WithMessage("invalid authorization format"))
			return
		}

		initData := strings.TrimPrefix(authHeader, "Telegram ")
		if !t.debugMode {
			if err := initdata.Validate(initData, t.botToken, expTime); err != nil {
				log.Info("invalid telegram init data", zap.Error(err))
				abort(c, apperr.ErrUnauthenticated.WithMessage("invalid telegram auth data"))
				return
			}
		}

		telegramUserData, err := ExtractTelegramData(initData)
		if err != nil {
			log.Info("failed to extract telegram data", zap.Error(err))
			abort(c, apperr.ErrUnauthenticated.WithMessage("invalid telegram data"))
			return
		}

		c.Set(telegramUserKey, telegramUserData)
		c.Next()
	}
}

func (t *TelegramAuth) GetBotToken() string {
	return t.botToken
}

type TelegramUserData struct {
	ID       int64
	Username string
	AuthDate time.Time
}

func ExtractTelegramData(initData string) (*TelegramUserData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	authDateUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, err
	}

	authDate := time.Unix(authDateUnix, 0)

	var userData struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	if err := json.Unmarshal([]byte(values.Get("user")), &userData); err != nil {
		return nil, err
	}
	if userData.ID == 0 {
		return nil, fmt.Errorf("user id is missing")
	}

	return &TelegramUserData{
		ID:       userData.ID,
		Username: userData.Username,
		AuthDate: authDate,
	}, nil
}

// TelegramUser returns the user set by TelegramAuthMiddleware.
func TelegramUser(c *gin.Context) (*TelegramUserData, bool) {
	v, exists := c.Get(telegramUserKey)
	if !exists {
		return nil, false
	}
	u, ok := v.(*TelegramUserData)
	return u, ok
}

// SetTelegramUser stores a user the way TelegramAuthMiddleware does.
func SetTelegramUser(c *gin.Context, u *TelegramUserData) {
	c.Set(telegramUserKey, u)
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.Kind.HTTPStatus(), err.Body())
}
