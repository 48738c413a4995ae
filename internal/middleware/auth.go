package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/logging"
	"github.com/shinyyama/instrument-market/internal/model"
)

const ctxUserID = "uid"

// IDTokenVerifier is satisfied by *fbauth.Client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// UserResolver maps a Firebase identity to a local account.
type UserResolver interface {
	ResolveFirebaseUser(ctx context.Context, uid, email, name string) (*model.User, error)
}

type AuthMiddleware struct {
	issuer   *auth.Issuer
	firebase IDTokenVerifier
	users    UserResolver
}

// NewAuthMiddleware accepts locally issued tokens. Firebase ID tokens are
// accepted as well when verifier is non-nil.
func NewAuthMiddleware(issuer *auth.Issuer, verifier IDTokenVerifier, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer, firebase: verifier, users: users}
}

func NewFirebaseVerifier(ctx context.Context, projectID string) (*fbauth.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

func unauthorized(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}

func bearer(c echo.Context) string {
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

// authenticate resolves the token to (user id, role).
func (m *AuthMiddleware) authenticate(c echo.Context, token string) (uint64, string, bool) {
	if claims, err := m.issuer.Validate(token); err == nil {
		return claims.UserID, claims.Role, true
	}
	if m.firebase == nil || m.users == nil {
		return 0, "", false
	}
	ctx := c.Request().Context()
	t, err := m.firebase.VerifyIDToken(ctx, token)
	if err != nil {
		return 0, "", false
	}
	email, _ := t.Claims["email"].(string)
	name, _ := t.Claims["name"].(string)
	u, err := m.users.ResolveFirebaseUser(ctx, t.UID, email, name)
	if err != nil {
		return 0, "", false
	}
	return u.ID, string(u.Role), true
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearer(c)
		if token == "" {
			return unauthorized(c, "unauthorized", "missing bearer token")
		}
		uid, role, ok := m.authenticate(c, token)
		if !ok {
			return unauthorized(c, "invalid_token", "invalid or expired token")
		}
		setCaller(c, uid, role)
		return next(c)
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := bearer(c); token != "" {
			if uid, role, ok := m.authenticate(c, token); ok {
				setCaller(c, uid, role)
			}
		}
		return next(c)
	}
}

// UserID returns the authenticated caller, or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
	uid, _ := c.Get(ctxUserID).(uint64)
	return uid
}

// setCaller stores the caller id and tags the request logger with it.
func setCaller(c echo.Context, uid uint64, role string) {
	c.Set(ctxUserID, uid)
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("user_id", uid, "role", role)
	c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
}
