package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/service"
)

type FavoriteHandler struct {
	svc service.FavoriteService
}

func NewFavoriteHandler(svc service.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: svc}
}

func (h *FavoriteHandler) Toggle(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	favorited, count, err := h.svc.Toggle(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"is_favorited":   favorited,
		"favorite_count": count,
	})
}

func (h *FavoriteHandler) List(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	list, err := h.svc.List(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"instruments": toInstrumentList(list)})
}
