package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/service"
)

type StatsHandler struct {
	svc service.StatsService
}

func NewStatsHandler(svc service.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) Dashboard(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	d, err := h.svc.Dashboard(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"statistics": map[string]interface{}{
			"total_users":       d.Users.Total,
			"today_users":       d.Users.Today,
			"total_instruments": d.Instruments.Total,
			"today_instruments": d.Instruments.Today,
			"total_orders":      d.Orders.Total,
			"today_orders":      d.Orders.Today,
			"total_sales":       money(d.Sales),
			"today_sales":       money(d.SalesToday),
		},
	})
}
