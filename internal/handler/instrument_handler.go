package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/service"
	"github.com/shopspring/decimal"
)

type InstrumentHandler struct {
	svc service.InstrumentService
}

func NewInstrumentHandler(svc service.InstrumentService) *InstrumentHandler {
	return &InstrumentHandler{svc: svc}
}

func queryInt(c echo.Context, name string) int {
	v, _ := strconv.Atoi(c.QueryParam(name))
	return v
}

func parseDecimal(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *InstrumentHandler) List(c echo.Context) error {
	params := service.SearchParams{
		Keyword:   c.QueryParam("keyword"),
		Condition: model.Condition(c.QueryParam("condition")),
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: c.QueryParam("sort_order"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "page_size"),
	}
	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid category_id")
		}
		params.CategoryID = &id
	}
	var err error
	if params.MinPrice, err = parseDecimal(c.QueryParam("min_price")); err != nil {
		return badRequest(c, "invalid min_price")
	}
	if params.MaxPrice, err = parseDecimal(c.QueryParam("max_price")); err != nil {
		return badRequest(c, "invalid max_price")
	}

	list, meta, err := h.svc.Search(c.Request().Context(), params)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"instruments": toInstrumentList(list),
		"pagination":  meta,
	})
}

func (h *InstrumentHandler) Hot(c echo.Context) error {
	list, err := h.svc.Hot(c.Request().Context(), queryInt(c, "limit"))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"instruments": toInstrumentList(list)})
}

func (h *InstrumentHandler) Get(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	viewer, _ := currentUser(c)
	d, err := h.svc.Get(c.Request().Context(), id, viewer)
	if err != nil {
		return writeError(c, err)
	}
	resp := toInstrumentResponse(d.Instrument)
	fav := d.IsFavorited
	resp.IsFavorited = &fav
	return ok(c, http.StatusOK, map[string]interface{}{"instrument": resp})
}

// uploads opens the files of a multipart field. The returned func closes them.
func uploads(c echo.Context, field string) ([]service.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, err
	}
	var (
		out    []service.Upload
		opened []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, err
		}
		opened = append(opened, f)
		out = append(out, service.Upload{Filename: fh.Filename, Body: f})
	}
	return out, closeAll, nil
}

func (h *InstrumentHandler) Create(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	price, err := parseDecimal(c.FormValue("price"))
	if err != nil || price == nil {
		return badRequest(c, "invalid price")
	}
	orig, err := parseDecimal(c.FormValue("original_price"))
	if err != nil {
		return badRequest(c, "invalid original_price")
	}
	categoryID, err := strconv.ParseUint(strings.TrimSpace(c.FormValue("category_id")), 10, 64)
	if err != nil {
		return badRequest(c, "invalid category_id")
	}
	mainIndex, _ := strconv.Atoi(c.FormValue("main_image_index"))

	images, closeImages, err := uploads(c, "images")
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}
	defer closeImages()
	audios, closeAudio, err := uploads(c, "audio")
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}
	defer closeAudio()
	var audio *service.Upload
	if len(audios) > 0 {
		audio = &audios[0]
	}

	inst, err := h.svc.Create(c.Request().Context(), uid, service.InstrumentInput{
		Title:         c.FormValue("title"),
		Description:   c.FormValue("description"),
		Price:         *price,
		OriginalPrice: orig,
		CategoryID:    categoryID,
		Condition:     model.Condition(strings.TrimSpace(c.FormValue("condition"))),
		Brand:         c.FormValue("brand"),
		Model:         c.FormValue("model"),
		Location:      c.FormValue("location"),
	}, images, audio, mainIndex)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusCreated, map[string]interface{}{
		"message":       "instrument published",
		"instrument_id": inst.ID,
		"instrument":    toInstrumentResponse(inst),
	})
}

type UpdateInstrumentRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Price         *string `json:"price"`
	OriginalPrice *string `json:"original_price"`
	CategoryID    *uint64 `json:"category_id"`
	Condition     *string `json:"condition"`
	Brand         *string `json:"brand"`
	Model         *string `json:"model"`
	Location      *string `json:"location"`
	Status        *string `json:"status"`
}

// patchRequest reads the update from a JSON body or from form fields.
func patchRequest(c echo.Context) (UpdateInstrumentRequest, error) {
	var req UpdateInstrumentRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		err := c.Bind(&req)
		return req, err
	}
	form, err := c.FormParams()
	if err != nil {
		return req, err
	}
	str := func(name string) *string {
		if _, present := form[name]; !present {
			return nil
		}
		v := form.Get(name)
		return &v
	}
	req.Title = str("title")
	req.Description = str("description")
	req.Price = str("price")
	req.OriginalPrice = str("original_price")
	req.Condition = str("condition")
	req.Brand = str("brand")
	req.Model = str("model")
	req.Location = str("location")
	req.Status = str("status")
	if raw := str("category_id"); raw != nil {
		id, err := strconv.ParseUint(strings.TrimSpace(*raw), 10, 64)
		if err != nil {
			return req, err
		}
		req.CategoryID = &id
	}
	return req, nil
}

func (h *InstrumentHandler) Update(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	req, err := patchRequest(c)
	if err != nil {
		return badRequest(c, "invalid request body")
	}

	patch := service.InstrumentPatch{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Brand:       req.Brand,
		Model:       req.Model,
		Location:    req.Location,
	}
	if req.Price != nil {
		if patch.Price, err = parseDecimal(*req.Price); err != nil || patch.Price == nil {
			return badRequest(c, "invalid price")
		}
	}
	if req.OriginalPrice != nil {
		if patch.OriginalPrice, err = parseDecimal(*req.OriginalPrice); err != nil {
			return badRequest(c, "invalid original_price")
		}
	}
	if req.Condition != nil {
		cond := model.Condition(strings.TrimSpace(*req.Condition))
		patch.Condition = &cond
	}
	if req.Status != nil {
		st := model.InstrumentStatus(strings.TrimSpace(*req.Status))
		patch.Status = &st
	}

	images, closeImages, err := uploads(c, "images")
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}
	defer closeImages()

	inst, err := h.svc.Update(c.Request().Context(), id, uid, patch, images)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"message":    "instrument updated",
		"instrument": toInstrumentResponse(inst),
	})
}

// Delete hides the listing; admins may pass purge=true to delete it with
// its dependents.
func (h *InstrumentHandler) Delete(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	if c.QueryParam("purge") == "true" {
		if err := h.svc.Purge(ctx, id, uid); err != nil {
			return writeError(c, err)
		}
		return ok(c, http.StatusOK, map[string]interface{}{"message": "instrument deleted"})
	}
	if err := h.svc.Remove(ctx, id, uid); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"message": "instrument removed"})
}

func (h *InstrumentHandler) UploadImages(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	files, closeFiles, err := uploads(c, "images")
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}
	defer closeFiles()

	isMain := strings.EqualFold(c.FormValue("is_main"), "true")
	images, err := h.svc.UploadImages(c.Request().Context(), id, uid, files, isMain)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]ImageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, toImageResponse(img))
	}
	return ok(c, http.StatusCreated, map[string]interface{}{"images": resp})
}

func (h *InstrumentHandler) Contact(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid json")
	}
	contact, err := h.svc.ContactSeller(c.Request().Context(), id, uid, body.Message)
	if err != nil {
		return writeError(c, err)
	}
	methods := make([]map[string]string, 0, len(contact.Methods))
	for _, m := range contact.Methods {
		methods = append(methods, map[string]string{"type": m.Type, "value": m.Value})
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"contact_info": map[string]interface{}{
			"seller_id":       contact.SellerID,
			"seller_name":     contact.SellerName,
			"contact_methods": methods,
		},
	})
}

func (h *InstrumentHandler) Suggestions(c echo.Context) error {
	s, err := h.svc.Suggest(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]map[string]interface{}, 0, len(s.Instruments)+len(s.Categories))
	for _, inst := range s.Instruments {
		out = append(out, map[string]interface{}{
			"type":  "instrument",
			"id":    inst.ID,
			"title": inst.Title,
			"price": money(inst.Price),
		})
	}
	for _, cat := range s.Categories {
		out = append(out, map[string]interface{}{
			"type": "category",
			"id":   cat.ID,
			"name": cat.Name,
		})
	}
	return ok(c, http.StatusOK, map[string]interface{}{"suggestions": out})
}

func (h *InstrumentHandler) ListByUser(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}
	u, list, meta, err := h.svc.ListByUser(c.Request().Context(), id, queryInt(c, "page"), queryInt(c, "page_size"))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{
		"user":        toUserSummary(u),
		"instruments": toInstrumentList(list),
		"pagination":  meta,
	})
}

func (h *InstrumentHandler) ListMine(c echo.Context) error {
	uid, authed := currentUser(c)
	if !authed {
		return unauthorized(c)
	}
	list, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, map[string]interface{}{"instruments": toInstrumentList(list)})
}
