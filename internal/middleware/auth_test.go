package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/util"
)

type fakeAuthenticator struct {
	tokens map[string]*models.User
}

func (f fakeAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, util.OptionalUserID(c))
	})
	return router
}

func TestAuthRequired(t *testing.T) {
	authn := fakeAuthenticator{tokens: map[string]*models.User{"good": {ID: "u1"}}}
	router := authRouter(AuthRequired(authn))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK, "u1"},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
		{"not bearer", func(r *http.Request) { r.Header.Set("Authorization", "Basic good") }, http.StatusUnauthorized, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"}) }, http.StatusOK, "u1"},
		{"query ignored without upgrade", func(r *http.Request) { r.URL.RawQuery = "token=good" }, http.StatusUnauthorized, ""},
		{"query on websocket upgrade", func(r *http.Request) {
			r.URL.RawQuery = "token=good"
			r.Header.Set("Upgrade", "websocket")
		}, http.StatusOK, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAuthOptional(t *testing.T) {
	authn := fakeAuthenticator{tokens: map[string]*models.User{"good": {ID: "u1"}}}
	router := authRouter(AuthOptional(authn))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "u1", w.Body.String())
}
