package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/logging"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, token string) (*fbauth.Token, error) {
	if token != "firebase-token" {
		return nil, errors.New("bad token")
	}
	return &fbauth.Token{UID: "fb-1", Claims: map[string]interface{}{"email": "fb@example.com"}}, nil
}

type fakeResolver struct{}

func (fakeResolver) ResolveFirebaseUser(_ context.Context, uid, email, _ string) (*model.User, error) {
	return &model.User{ID: 77, Role: model.UserRoleUser, Email: email}, nil
}

func run(t *testing.T, mw echo.MiddlewareFunc, token string) (*httptest.ResponseRecorder, uint64) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen uint64
	err := mw(func(c echo.Context) error {
		seen = UserID(c)
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)
	return rec, seen
}

func TestRequireAuth(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	m := NewAuthMiddleware(iss, fakeVerifier{}, fakeResolver{})
	token, _, err := iss.Generate(5, "alice", "user")
	require.NoError(t, err)

	rec, uid := run(t, m.RequireAuth, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, uid)

	rec, uid = run(t, m.RequireAuth, "firebase-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 77, uid)

	rec, _ = run(t, m.RequireAuth, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	rec, _ = run(t, m.RequireAuth, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")
}

func TestOptionalAuth(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	m := NewAuthMiddleware(iss, nil, nil)

	rec, uid := run(t, m.OptionalAuth, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, uid)

	rec, uid = run(t, m.OptionalAuth, "garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, uid)
}

func TestRequestLoggerCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewWithWriter(&buf, "info")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequestLogger(base)(func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside handler")
		return c.String(http.StatusTeapot, "tea")
	})(c)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"level":"WARN"`)
}
