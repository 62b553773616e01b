package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestReviewerTokens_RoundTrip(t *testing.T) {
	tokens := NewReviewerTokens(ReviewerTokenConfig{Secret: "s3cret", Issuer: "missions", TTL: time.Hour})

	raw, err := tokens.Issue(77)
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(77), claims.ReviewerID)
	assert.Equal(t, "77", claims.Subject)
}

func TestReviewerTokens_Rejects(t *testing.T) {
	tokens := NewReviewerTokens(ReviewerTokenConfig{Secret: "s3cret", Issuer: "missions", TTL: time.Hour})

	other := NewReviewerTokens(ReviewerTokenConfig{Secret: "other", Issuer: "missions"})
	forged, err := other.Issue(77)
	require.NoError(t, err)
	_, err = tokens.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := NewReviewerTokens(ReviewerTokenConfig{Secret: "s3cret", Issuer: "someone-else"})
	wrongIssuer, err := foreign.Issue(77)
	require.NoError(t, err)
	_, err = tokens.Parse(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewReviewerTokens(ReviewerTokenConfig{Secret: "s3cret", Issuer: "missions", TTL: time.Minute})
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue(77)
	require.NoError(t, err)
	_, err = tokens.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestReviewerAuthMiddleware(t *testing.T) {
	tokens := NewReviewerTokens(ReviewerTokenConfig{Secret: "s3cret"})
	raw, err := tokens.Issue(5)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/review", tokens.ReviewerAuthMiddleware(), func(c *gin.Context) {
		id, _ := ReviewerID(c)
		c.JSON(http.StatusOK, gin.H{"reviewer_id": id})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + raw, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + raw, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/review", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"unauthenticated"`)
			}
		})
	}
}

func initData(userJSON string) string {
	v := url.Values{}
	v.Set("user", userJSON)
	v.Set("auth_date", "1714564800")
	v.Set("hash", "deadbeef")
	return v.Encode()
}

func TestExtractTelegramData(t *testing.T) {
	data, err := ExtractTelegramData(initData(`{"id":42,"username":"walker"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), data.ID)
	assert.Equal(t, "walker", data.Username)
	assert.Equal(t, int64(1714564800), data.AuthDate.Unix())

	_, err = ExtractTelegramData(initData(`{"username":"nobody"}`))
	assert.Error(t, err)

	_, err = ExtractTelegramData(initData(`not json`))
	assert.Error(t, err)
}

func TestTelegramAuthMiddleware(t *testing.T) {
	router := func(debug bool) *gin.Engine {
		r := gin.New()
		r.GET("/me", NewTelegramAuth("bot-token", debug).TelegramAuthMiddleware(), func(c *gin.Context) {
			u, _ := TelegramUser(c)
			c.JSON(http.StatusOK, gin.H{"id": u.ID})
		})
		return r
	}

	do := func(r *gin.Engine, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	valid := "Telegram " + initData(`{"id":42}`)

	assert.Equal(t, http.StatusUnauthorized, do(router(true), "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router(true), "Bearer x").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router(false), valid).Code)

	w := do(router(true), valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42}`, w.Body.String())
}
