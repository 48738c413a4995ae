package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type NotificationResponse struct {
	ID           uint64  `json:"id"`
	Type         string  `json:"type"`
	Title        string  `json:"title"`
	Body         string  `json:"body"`
	InstrumentID *uint64 `json:"instrument_id,omitempty"`
	OrderID      *string `json:"order_id,omitempty"`
	Read         bool    `json:"read"`
	CreatedAt    string  `json:"created_at"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           n.ID,
		Type:         n.Type,
		Title:        n.Title,
		Body:         n.Body,
		InstrumentID: n.InstrumentID,
		OrderID:      n.OrderID,
		Read:         n.ReadAt != nil,
		CreatedAt:    n.CreatedAt.Format(time.RFC3339),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	unreadOnly := c.QueryParam("unread_only") != "false"
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			limit = lParsed
		}
	}
	list, unreadCount, err := h.svc.List(c.Request().Context(), uid, unreadOnly, limit)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unread_count":  unreadCount,
	})
}

// MarkRead accepts an optional {"ids": [...]}; without ids every unread
// notification is marked.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req struct {
		IDs []uint64 `json:"ids"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid json")
		}
	}
	n, err := h.svc.MarkRead(c.Request().Context(), uid, req.IDs)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"updated": n})
}
