package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/logging"
	"github.com/shinyyama/instrument-market/internal/middleware"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/service"
	"github.com/shopspring/decimal"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrInvalidRequest, http.StatusBadRequest, "bad_request"},
	{service.ErrConflict, http.StatusConflict, "conflict"},
	{service.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
}

// writeError maps service errors onto HTTP responses. Unknown errors are
// logged and reported as 500 without details.
func writeError(c echo.Context, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return c.JSON(e.status, NewErrorResponse(e.code, err.Error()))
		}
	}
	logging.FromContext(c.Request().Context()).Error("request failed", "err", err)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "internal server error"))
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", msg))
}

// currentUser returns the authenticated caller id.
func currentUser(c echo.Context) (uint64, bool) {
	uid := middleware.UserID(c)
	return uid, uid != 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "login required"))
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func ok(c echo.Context, status int, body map[string]interface{}) error {
	if body == nil {
		body = map[string]interface{}{}
	}
	body["success"] = true
	return c.JSON(status, body)
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func moneyPtr(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	m := money(*d)
	return &m
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

type UserSummary struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	RealName    string `json:"real_name"`
	Avatar      string `json:"avatar"`
	CreditScore int    `json:"credit_score"`
	IsVerified  bool   `json:"is_verified"`
}

func toUserSummary(u *model.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		RealName:    u.RealName,
		Avatar:      u.Avatar,
		CreditScore: u.CreditScore,
		IsVerified:  u.IsVerified,
	}
}

type UserResponse struct {
	UserSummary
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	StudentID string  `json:"student_id"`
	Role      string  `json:"role"`
	CreatedAt string  `json:"created_at"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		UserSummary: *toUserSummary(u),
		Email:       u.Email,
		Phone:       u.Phone,
		StudentID:   u.StudentID,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

type CategoryResponse struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func toCategoryResponse(c model.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, Icon: c.Icon}
}

type ImageResponse struct {
	ID        uint64 `json:"id"`
	ImageURL  string `json:"image_url"`
	IsMain    bool   `json:"is_main"`
	SortOrder int    `json:"sort_order"`
}

func toImageResponse(img model.InstrumentImage) ImageResponse {
	return ImageResponse{ID: img.ID, ImageURL: img.ImageURL, IsMain: img.IsMain, SortOrder: img.SortOrder}
}

type InstrumentResponse struct {
	ID            uint64          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Price         json.Number     `json:"price"`
	OriginalPrice *json.Number    `json:"original_price,omitempty"`
	CategoryID    *uint64         `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"`
	Condition     string          `json:"condition"`
	Brand         string          `json:"brand"`
	Model         string          `json:"model"`
	Status        string          `json:"status"`
	ViewCount     int64           `json:"view_count"`
	FavoriteCount int64           `json:"favorite_count"`
	Location      string          `json:"location"`
	AudioURL      *string         `json:"audio_url,omitempty"`
	MainImage     *string         `json:"main_image,omitempty"`
	Images        []ImageResponse `json:"images"`
	Owner         *UserSummary    `json:"owner,omitempty"`
	OwnerID       uint64          `json:"owner_id"`
	IsFavorited   *bool           `json:"is_favorited,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

func toInstrumentResponse(i *model.Instrument) InstrumentResponse {
	resp := InstrumentResponse{
		ID:            i.ID,
		Title:         i.Title,
		Description:   i.Description,
		Price:         money(i.Price),
		OriginalPrice: moneyPtr(i.OriginalPrice),
		CategoryID:    i.CategoryID,
		Condition:     string(i.Condition),
		Brand:         i.Brand,
		Model:         i.Model,
		Status:        string(i.Status),
		ViewCount:     i.ViewCount,
		FavoriteCount: i.FavoriteCount,
		Location:      i.Location,
		AudioURL:      i.AudioURL,
		MainImage:     i.MainImage(),
		Images:        make([]ImageResponse, 0, len(i.Images)),
		Owner:         toUserSummary(i.Owner),
		OwnerID:       i.OwnerID,
		CreatedAt:     i.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     i.UpdatedAt.Format(time.RFC3339),
	}
	if i.Category != nil {
		resp.CategoryName = i.Category.Name
	}
	for _, img := range i.Images {
		resp.Images = append(resp.Images, toImageResponse(img))
	}
	return resp
}

func toInstrumentList(list []model.Instrument) []InstrumentResponse {
	resp := make([]InstrumentResponse, 0, len(list))
	for k := range list {
		resp = append(resp, toInstrumentResponse(&list[k]))
	}
	return resp
}

type InstrumentSummary struct {
	ID        uint64      `json:"id"`
	Title     string      `json:"title"`
	Price     json.Number `json:"price"`
	Status    string      `json:"status"`
	MainImage *string     `json:"main_image,omitempty"`
}

func toInstrumentSummary(i *model.Instrument) *InstrumentSummary {
	if i == nil {
		return nil
	}
	return &InstrumentSummary{
		ID:        i.ID,
		Title:     i.Title,
		Price:     money(i.Price),
		Status:    string(i.Status),
		MainImage: i.MainImage(),
	}
}
