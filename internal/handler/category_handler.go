package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/service"
)

type CategoryHandler struct {
	svc service.CategoryService
}

func NewCategoryHandler(svc service.CategoryService) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

func (h *CategoryHandler) List(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]CategoryResponse, 0, len(list))
	for _, cat := range list {
		resp = append(resp, toCategoryResponse(cat))
	}
	return ok(c, http.StatusOK, map[string]interface{}{"categories": resp})
}
