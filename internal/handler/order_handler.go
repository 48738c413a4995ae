package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/service"
)

type OrderHandler struct {
	svc service.OrderService
}

func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type CreateOrderRequest struct {
	InstrumentID uint64 `json:"instrument_id"`
	Quantity     *int   `json:"quantity"`
	MeetingTime  string `json:"meeting_time"`
	MeetingPlace string `json:"meeting_place"`
}

type UpdateOrderStatusRequest struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
}

type UpdateMeetingRequest struct {
	MeetingTime  *string `json:"meeting_time"`
	MeetingPlace *string `json:"meeting_place"`
}

type OrderResponse struct {
	ID            string             `json:"id"`
	InstrumentID  uint64             `json:"instrument_id"`
	BuyerID       uint64             `json:"buyer_id"`
	SellerID      uint64             `json:"seller_id"`
	Quantity      int                `json:"quantity"`
	TotalPrice    json.Number        `json:"total_price"`
	Status        string             `json:"status"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	MeetingTime   *string            `json:"meeting_time,omitempty"`
	MeetingPlace  string             `json:"meeting_place,omitempty"`
	Instrument    *InstrumentSummary `json:"instrument,omitempty"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
}

func toOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		InstrumentID:  o.InstrumentID,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		Quantity:      o.Quantity,
		TotalPrice:    money(o.TotalPrice),
		Status:        string(o.Status),
		PaymentMethod: o.PaymentMethod,
		MeetingTime:   timePtr(o.MeetingTime),
		MeetingPlace:  o.MeetingPlace,
		Instrument:    toInstrumentSummary(o.Instrument),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
}

var meetingLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// parseMeetingTime accepts RFC3339 or the datetime-local formats browsers
// send. Values without a zone are read as UTC.
func parseMeetingTime(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range meetingLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// quantityOrOne defaults an omitted quantity. An explicit value, zero
// included, is passed through for validation.
func quantityOrOne(q *int) int {
	if q == nil {
		return 1
	}
	return *q
}

func (h *OrderHandler) Create(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if req.InstrumentID == 0 {
		return badRequest(c, "instrument_id is required")
	}
	meeting, valid := parseMeetingTime(req.MeetingTime)
	if !valid {
		return badRequest(c, "invalid meeting_time")
	}

	order, err := h.svc.Create(c.Request().Context(), service.CreateOrderInput{
		InstrumentID: req.InstrumentID,
		BuyerID:      uid,
		Quantity:     quantityOrOne(req.Quantity),
		MeetingTime:  meeting,
		MeetingPlace: strings.TrimSpace(req.MeetingPlace),
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusCreated, map[string]interface{}{
		"message":  "order created",
		"order_id": order.ID,
		"order":    toOrderResponse(order),
	})
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if strings.TrimSpace(req.Status) == "" {
		return badRequest(c, "status is required")
	}
	order, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), uid, strings.TrimSpace(req.Status), strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"message": "order status updated",
		"order":   toOrderResponse(order),
	})
}

func (h *OrderHandler) Get(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	order, err := h.svc.Get(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"order": toOrderResponse(order)})
}

func (h *OrderHandler) List(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	list, err := h.svc.List(c.Request().Context(), uid, c.QueryParam("role"))
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]OrderResponse, 0, len(list))
	for k := range list {
		resp = append(resp, toOrderResponse(&list[k]))
	}
	return ok(c, http.StatusOK, map[string]interface{}{"orders": resp})
}

func (h *OrderHandler) UpdateMeeting(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	var req UpdateMeetingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	in := service.MeetingInput{MeetingPlace: req.MeetingPlace}
	if req.MeetingTime != nil {
		t, valid := parseMeetingTime(*req.MeetingTime)
		if !valid || t == nil {
			return badRequest(c, "invalid meeting_time")
		}
		in.MeetingTime = t
	}
	order, err := h.svc.UpdateMeeting(c.Request().Context(), c.Param("id"), uid, in)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"order": toOrderResponse(order)})
}
