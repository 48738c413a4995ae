package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/service"
)

type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Phone           string `json:"phone"`
}

type LoginRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type UpdateProfileRequest struct {
	RealName  *string `json:"real_name"`
	Phone     *string `json:"phone"`
	StudentID *string `json:"student_id"`
	Avatar    *string `json:"avatar"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func sessionBody(s *service.Session, msg string) map[string]interface{} {
	return map[string]interface{}{
		"message":    msg,
		"user":       toUserResponse(s.User),
		"token":      s.Token,
		"expires_at": s.ExpiresAt.Format(time.RFC3339),
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	sess, err := h.svc.Register(c.Request().Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Phone:           req.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusCreated, sessionBody(sess, "registered"))
}

func (h *UserHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	sess, err := h.svc.Login(c.Request().Context(), identifier, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, sessionBody(sess, "logged in"))
}

// Logout is an acknowledgement only; bearer tokens expire on their own.
func (h *UserHandler) Logout(c echo.Context) error {
	return ok(c, http.StatusOK, map[string]interface{}{"message": "logged out"})
}

func (h *UserHandler) CheckAuth(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return ok(c, http.StatusOK, map[string]interface{}{"authenticated": false})
	}
	u, err := h.svc.Profile(c.Request().Context(), uid)
	if err != nil {
		return ok(c, http.StatusOK, map[string]interface{}{"authenticated": false})
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          toUserResponse(u),
	})
}

func (h *UserHandler) Profile(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	u, err := h.svc.Profile(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"user": toUserResponse(u)})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), uid, service.ProfileInput{
		RealName:  req.RealName,
		Phone:     req.Phone,
		StudentID: req.StudentID,
		Avatar:    req.Avatar,
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"user": toUserResponse(u)})
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := h.svc.ChangePassword(c.Request().Context(), uid, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"message": "password changed"})
}
