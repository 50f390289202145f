package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/config"
	"github.com/zfogg/vidshare/internal/middleware"
	"github.com/zfogg/vidshare/internal/testutil"
	"github.com/zfogg/vidshare/internal/validation"
)

type AuthHandlersTestSuite struct {
	suite.Suite
	router *gin.Engine
	svc    *auth.Service
}

func TestAuthHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlersTestSuite))
}

func (s *AuthHandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	validation.Register()

	db := testutil.NewDB(s.T())
	s.svc = auth.NewService(db, config.AuthConfig{
		JWTSecret:       "handler_test_secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ResetTokenTTL:   time.Hour,
	}, nil, "http://localhost:5173")

	ah := NewAuthHandlers(db, s.svc, testutil.NewFakeUploader(), false, s.svc.AccessTTL(), s.svc.RefreshTTL())
	s.router = gin.New()
	ah.RegisterRoutes(s.router.Group("/api/v1"), RouteMiddleware{
		Auth:         middleware.AuthRequired(s.svc),
		OptionalAuth: middleware.AuthOptional(s.svc),
	})
}

func (s *AuthHandlersTestSuite) post(path, token string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return s.send(http.MethodPost, path, token, body, cookies...)
}

func (s *AuthHandlersTestSuite) send(method, path, token string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthHandlersTestSuite) register(username string) sessionResponse {
	w := s.post("/api/v1/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"fullName": "Test " + username,
		"password": "correct-horse",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var session sessionResponse
	decode(s.T(), w, &session)
	return session
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *AuthHandlersTestSuite) TestRegisterSetsSessionCookies() {
	w := s.post("/api/v1/auth/register", "", gin.H{
		"username": "Alice",
		"email":    "alice@example.com",
		"fullName": "Alice",
		"password": "correct-horse",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var session sessionResponse
	decode(s.T(), w, &session)
	s.Equal("alice", session.User.Username)
	s.NotEmpty(session.AccessToken)

	access := cookieNamed(w, middleware.AccessTokenCookie)
	s.Require().NotNil(access)
	s.True(access.HttpOnly)
	s.Equal(session.AccessToken, access.Value)
	s.NotNil(cookieNamed(w, RefreshTokenCookie))
}

func (s *AuthHandlersTestSuite) TestRegisterRejectsDuplicatesAndBadInput() {
	s.register("bob")

	w := s.post("/api/v1/auth/register", "", gin.H{
		"username": "bob",
		"email":    "other@example.com",
		"fullName": "Bob Two",
		"password": "correct-horse",
	})
	s.Equal(http.StatusConflict, w.Code)

	w = s.post("/api/v1/auth/register", "", gin.H{
		"username": "not valid!",
		"email":    "x@example.com",
		"fullName": "X",
		"password": "short",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	env := decode(s.T(), w, nil)
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	s.True(fields["username"])
	s.True(fields["password"])
}

func (s *AuthHandlersTestSuite) TestLoginAndMe() {
	s.register("carol")

	s.Equal(http.StatusUnauthorized, s.post("/api/v1/auth/login", "", gin.H{"username": "carol", "password": "wrong-pass"}).Code)

	w := s.post("/api/v1/auth/login", "", gin.H{"username": "CAROL", "password": "correct-horse"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var session sessionResponse
	decode(s.T(), w, &session)

	w = s.send(http.MethodGet, "/api/v1/auth/me", session.AccessToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var me struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	decode(s.T(), w, &me)
	s.Equal("carol", me.Username)
	s.Empty(me.Password)

	s.Equal(http.StatusUnauthorized, s.send(http.MethodGet, "/api/v1/auth/me", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.send(http.MethodGet, "/api/v1/auth/me", "garbage", nil).Code)
}

func (s *AuthHandlersTestSuite) TestRefreshRotatesAndDetectsReuse() {
	first := s.register("dave")

	w := s.post("/api/v1/auth/refresh-token", "", nil, &http.Cookie{Name: RefreshTokenCookie, Value: first.RefreshToken})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var second sessionResponse
	decode(s.T(), w, &second)
	s.NotEqual(first.RefreshToken, second.RefreshToken)

	w = s.post("/api/v1/auth/refresh-token", "", gin.H{"refreshToken": first.RefreshToken})
	s.Equal(http.StatusUnauthorized, w.Code)
	cleared := cookieNamed(w, RefreshTokenCookie)
	s.Require().NotNil(cleared)
	s.Empty(cleared.Value)

	// Reuse revoked the whole session.
	s.Equal(http.StatusUnauthorized, s.post("/api/v1/auth/refresh-token", "", gin.H{"refreshToken": second.RefreshToken}).Code)
	s.Equal(http.StatusUnauthorized, s.post("/api/v1/auth/refresh-token", "", nil).Code)
}

func (s *AuthHandlersTestSuite) TestLogoutRevokesRefresh() {
	session := s.register("erin")

	s.Require().Equal(http.StatusOK, s.post("/api/v1/auth/logout", session.AccessToken, nil).Code)
	s.Equal(http.StatusUnauthorized, s.post("/api/v1/auth/refresh-token", "", gin.H{"refreshToken": session.RefreshToken}).Code)
}

func (s *AuthHandlersTestSuite) TestForgotPasswordDoesNotRevealAccounts() {
	s.register("frank")
	s.Equal(http.StatusOK, s.post("/api/v1/auth/forgot-password", "", gin.H{"email": "frank@example.com"}).Code)
	s.Equal(http.StatusOK, s.post("/api/v1/auth/forgot-password", "", gin.H{"email": "nobody@example.com"}).Code)
	s.Equal(http.StatusBadRequest, s.post("/api/v1/auth/reset-password", "", gin.H{"token": "bogus", "password": "new-password"}).Code)
}

func (s *AuthHandlersTestSuite) TestChangePassword() {
	session := s.register("gina")

	w := s.post("/api/v1/auth/change-password", session.AccessToken, gin.H{"currentPassword": "nope-nope", "newPassword": "brand-new-pass"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.post("/api/v1/auth/change-password", session.AccessToken, gin.H{"currentPassword": "correct-horse", "newPassword": "brand-new-pass"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(http.StatusOK, s.post("/api/v1/auth/login", "", gin.H{"email": "gina@example.com", "password": "brand-new-pass"}).Code)
}

func (s *AuthHandlersTestSuite) TestUpdateMe() {
	s.register("hank")
	session := s.register("ivy")

	w := s.send(http.MethodPatch, "/api/v1/users/me", session.AccessToken, gin.H{"email": "HANK@example.com"})
	s.Equal(http.StatusConflict, w.Code)

	s.Equal(http.StatusBadRequest, s.send(http.MethodPatch, "/api/v1/users/me", session.AccessToken, gin.H{}).Code)

	w = s.send(http.MethodPatch, "/api/v1/users/me", session.AccessToken, gin.H{"fullName": "Ivy Q", "bio": "hi"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var user struct {
		FullName string `json:"fullName"`
		Bio      string `json:"bio"`
	}
	decode(s.T(), w, &user)
	s.Equal("Ivy Q", user.FullName)
	s.Equal("hi", user.Bio)
}
