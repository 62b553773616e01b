package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mission_rewards/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const reviewerIDKey = "reviewer_id"

var ErrInvalidToken = errors.New("invalid token")

type ReviewerTokenConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ReviewerClaims struct {
	ReviewerID int64 `json:"reviewer_id"`
	jwt.RegisteredClaims
}

// ReviewerTokens issues and checks the bearer tokens reviewers use on the review API.
// Permissions are looked up per request, the token only carries identity.
type ReviewerTokens struct {
	cfg ReviewerTokenConfig
	now func() time.Time
}

func NewReviewerTokens(cfg ReviewerTokenConfig) *ReviewerTokens {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &ReviewerTokens{cfg: cfg, now: time.Now}
}

func (r *ReviewerTokens) Issue(reviewerID int64) (string, error) {
	now := r.now()
	claims := ReviewerClaims{
		ReviewerID: reviewerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(reviewerID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    r.cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(r.cfg.Secret))
}

func (r *ReviewerTokens) Parse(tokenString string) (*ReviewerClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	}
	if r.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &ReviewerClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(r.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*ReviewerClaims)
	if !ok || !token.Valid || claims.ReviewerID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ReviewerAuthMiddleware requires a valid reviewer bearer token.
func (r *ReviewerTokens) ReviewerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.ErrUnauthenticated.WithMessage("missing authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, apperr.ErrUnauthenticated.WithMessage("invalid authorization format"))
			return
		}
		claims, err := r.Parse(parts[1])
		if err != nil {
			abort(c, apperr.ErrUnauthenticated.WithMessage("invalid or expired token"))
			return
		}
		c.Set(reviewerIDKey, claims.ReviewerID)
		c.Next()
	}
}

func ReviewerID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(reviewerIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// RequireReviewer aborts requests that did not pass ReviewerAuthMiddleware.
func RequireReviewer(c *gin.Context) (int64, bool) {
	id, ok := ReviewerID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.ErrUnauthenticated.Body())
	}
	return id, ok
}
