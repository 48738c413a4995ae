package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/service"
)

type CartHandler struct {
	svc service.CartService
}

func NewCartHandler(svc service.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

type AddToCartRequest struct {
	InstrumentID uint64 `json:"instrument_id"`
	Quantity     *int   `json:"quantity"`
}

type CartItemResponse struct {
	ID         uint64             `json:"id"`
	Quantity   int                `json:"quantity"`
	LineTotal  json.Number        `json:"line_total"`
	Instrument *InstrumentSummary `json:"instrument"`
	CreatedAt  string             `json:"created_at"`
}

func (h *CartHandler) Add(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	item, err := h.svc.Add(c.Request().Context(), uid, req.InstrumentID, quantityOrOne(req.Quantity))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"message":      "added to cart",
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})
}

func (h *CartHandler) Remove(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	if err := h.svc.Remove(c.Request().Context(), uid, id); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"message": "removed from cart"})
}

func (h *CartHandler) List(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	cart, err := h.svc.List(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]CartItemResponse, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, CartItemResponse{
			ID:         line.Item.ID,
			Quantity:   line.Item.Quantity,
			LineTotal:  money(line.LineTotal),
			Instrument: toInstrumentSummary(line.Item.Instrument),
			CreatedAt:  line.Item.CreatedAt.Format(time.RFC3339),
		})
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": money(cart.Total),
	})
}
