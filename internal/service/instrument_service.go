package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/instrument-market/internal/logging"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/pagination"
	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shinyyama/instrument-market/internal/storage"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxTitleLen      = 100
	hotWindow        = 7 * 24 * time.Hour
	defaultHotLimit  = 6
	maxHotLimit      = 50
	minSuggestRunes  = 2
	maxTitleSuggests = 10
	maxCatSuggests   = 5
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

type InstrumentInput struct {
	Title         string
	Description   string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	CategoryID    uint64
	Condition     model.Condition
	Brand         string
	Model         string
	Location      string
}

// InstrumentPatch holds the fields to change; nil means unchanged.
type InstrumentPatch struct {
	Title         *string
	Description   *string
	Price         *decimal.Decimal
	OriginalPrice *decimal.Decimal
	CategoryID    *uint64
	Condition     *model.Condition
	Brand         *string
	Model         *string
	Location      *string
	Status        *model.InstrumentStatus
}

type SearchParams struct {
	Keyword    string
	CategoryID *uint64
	Condition  model.Condition
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

type InstrumentDetail struct {
	Instrument  *model.Instrument
	IsFavorited bool
}

type Suggestions struct {
	Instruments []model.Instrument
	Categories  []model.Category
}

type ContactMethod struct {
	Type  string
	Value string
}

type SellerContact struct {
	SellerID   uint64
	SellerName string
	Methods    []ContactMethod
}

type InstrumentService interface {
	Create(ctx context.Context, ownerID uint64, in InstrumentInput, images []Upload, audio *Upload, mainIndex int) (*model.Instrument, error)
	Get(ctx context.Context, id, viewerID uint64) (*InstrumentDetail, error)
	Search(ctx context.Context, p SearchParams) ([]model.Instrument, pagination.Meta, error)
	Hot(ctx context.Context, limit int) ([]model.Instrument, error)
	Suggest(ctx context.Context, q string) (*Suggestions, error)
	Update(ctx context.Context, id, actorID uint64, patch InstrumentPatch, images []Upload) (*model.Instrument, error)
	Remove(ctx context.Context, id, actorID uint64) error
	Purge(ctx context.Context, id, actorID uint64) error
	UploadImages(ctx context.Context, id, actorID uint64, files []Upload, isMain bool) ([]model.InstrumentImage, error)
	ListByUser(ctx context.Context, userID uint64, page, pageSize int) (*model.User, []model.Instrument, pagination.Meta, error)
	ListMine(ctx context.Context, ownerID uint64) ([]model.Instrument, error)
	ContactSeller(ctx context.Context, id, callerID uint64, message string) (*SellerContact, error)
}

type instrumentService struct {
	tx            repository.Transactor
	instruments   repository.InstrumentRepository
	categories    repository.CategoryRepository
	users         repository.UserRepository
	favorites     repository.FavoriteRepository
	orders        repository.OrderRepository
	store         storage.Store
	notifications NotificationService
	now           func() time.Time
}

func NewInstrumentService(
	tx repository.Transactor,
	instruments repository.InstrumentRepository,
	categories repository.CategoryRepository,
	users repository.UserRepository,
	favorites repository.FavoriteRepository,
	orders repository.OrderRepository,
	store storage.Store,
	notifications NotificationService,
) InstrumentService {
	return &instrumentService{
		tx:            tx,
		instruments:   instruments,
		categories:    categories,
		users:         users,
		favorites:     favorites,
		orders:        orders,
		store:         store,
		notifications: notifications,
		now:           time.Now,
	}
}

func (s *instrumentService) Create(ctx context.Context, ownerID uint64, in InstrumentInput, images []Upload, audio *Upload, mainIndex int) (*model.Instrument, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || utf8.RuneCountInString(in.Title) > maxTitleLen {
		return nil, invalid("title is required and at most %d characters", maxTitleLen)
	}
	if in.Description == "" {
		return nil, invalid("description is required")
	}
	in.Price = in.Price.Round(2)
	in.OriginalPrice = roundPtr(in.OriginalPrice)
	if !in.Price.IsPositive() {
		return nil, invalid("price must be at least 0.01")
	}
	if in.OriginalPrice != nil && in.OriginalPrice.IsNegative() {
		return nil, invalid("original price must not be negative")
	}
	if in.CategoryID == 0 {
		return nil, invalid("category is required")
	}
	if in.Condition == "" {
		in.Condition = model.ConditionGood
	}
	if !in.Condition.Valid() {
		return nil, invalid("unknown condition %q", in.Condition)
	}
	if _, err := s.categories.FindByID(ctx, in.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("unknown category %d", in.CategoryID)
		}
		return nil, err
	}

	stored, err := s.saveImages(ctx, images, mainIndex)
	if err != nil {
		return nil, err
	}
	var audioURL *string
	if audio != nil {
		ref, err := s.saveFile(ctx, "audio", *audio, storage.AudioExts)
		if err != nil {
			return nil, err
		}
		audioURL = &ref
	}

	categoryID := in.CategoryID
	inst := &model.Instrument{
		Title:         in.Title,
		Description:   in.Description,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		CategoryID:    &categoryID,
		OwnerID:       ownerID,
		Condition:     in.Condition,
		Brand:         strings.TrimSpace(in.Brand),
		Model:         strings.TrimSpace(in.Model),
		Location:      strings.TrimSpace(in.Location),
		Status:        model.InstrumentStatusAvailable,
		AudioURL:      audioURL,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.instruments.Create(ctx, inst); err != nil {
			return err
		}
		return s.instruments.ReplaceImages(ctx, inst.ID, stored)
	})
	if err != nil {
		return nil, err
	}
	return s.instruments.FindDetail(ctx, inst.ID)
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(2)
	return &r
}

func (s *instrumentService) saveFile(ctx context.Context, folder string, f Upload, allowed []string) (string, error) {
	name, err := storage.ObjectName(f.Filename, allowed)
	if err != nil {
		return "", invalid("%s: %s", f.Filename, err.Error())
	}
	if s.store == nil {
		return "", errors.New("file storage not configured")
	}
	ref, err := s.store.Save(ctx, folder, name, f.Body)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", f.Filename, err)
	}
	return ref, nil
}

// saveImages stores files in order; the one at mainIndex (or the first when
// out of range) becomes the main image.
func (s *instrumentService) saveImages(ctx context.Context, files []Upload, mainIndex int) ([]model.InstrumentImage, error) {
	if mainIndex < 0 || mainIndex >= len(files) {
		mainIndex = 0
	}
	images := make([]model.InstrumentImage, 0, len(files))
	for i, f := range files {
		ref, err := s.saveFile(ctx, "images", f, storage.ImageExts)
		if err != nil {
			return nil, err
		}
		images = append(images, model.InstrumentImage{ImageURL: ref, IsMain: i == mainIndex, SortOrder: i})
	}
	return images, nil
}

// Get counts a view and returns the listing. Views by a known viewer are
// recorded in the view history. Removed listings are only visible to their
// owner and admins.
func (s *instrumentService) Get(ctx context.Context, id, viewerID uint64) (*InstrumentDetail, error) {
	inst, err := s.instruments.FindDetail(ctx, id)
	if err != nil {
		return nil, notFound(err, "instrument")
	}
	if inst.Status == model.InstrumentStatusRemoved {
		visible, err := s.canSeeRemoved(ctx, inst, viewerID)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, fmt.Errorf("%w: instrument", ErrNotFound)
		}
	}
	if err := s.instruments.IncrementViewCount(ctx, id); err != nil {
		return nil, notFound(err, "instrument")
	}
	inst.ViewCount++
	detail := &InstrumentDetail{Instrument: inst}
	if viewerID == 0 {
		return detail, nil
	}
	if err := s.instruments.RecordView(ctx, viewerID, id); err != nil {
		logging.FromContext(ctx).Warn("record view failed", "instrument_id", id, "user_id", viewerID, "err", err)
	}
	fav, err := s.favorites.Exists(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	detail.IsFavorited = fav
	return detail, nil
}

func (s *instrumentService) canSeeRemoved(ctx context.Context, inst *model.Instrument, viewerID uint64) (bool, error) {
	if viewerID == 0 {
		return false, nil
	}
	if inst.OwnerID == viewerID {
		return true, nil
	}
	viewer, err := s.users.FindByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return viewer.IsAdmin(), nil
}

func (s *instrumentService) Search(ctx context.Context, p SearchParams) ([]model.Instrument, pagination.Meta, error) {
	if p.Condition != "" && !p.Condition.Valid() {
		return nil, pagination.Meta{}, invalid("unknown condition %q", p.Condition)
	}
	if p.MinPrice != nil && p.MaxPrice != nil && p.MinPrice.GreaterThan(*p.MaxPrice) {
		return nil, pagination.Meta{}, invalid("min_price is greater than max_price")
	}
	page := pagination.Calculate(p.Page, p.PageSize)
	list, total, err := s.instruments.Search(ctx, repository.InstrumentFilter{
		Keyword:    p.Keyword,
		CategoryID: p.CategoryID,
		Condition:  p.Condition,
		MinPrice:   p.MinPrice,
		MaxPrice:   p.MaxPrice,
		SortBy:     p.SortBy,
		SortDesc:   !strings.EqualFold(p.SortOrder, "asc"),
		Offset:     page.Offset,
		Limit:      page.PageSize,
	})
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, page.Meta(total), nil
}

func (s *instrumentService) Hot(ctx context.Context, limit int) ([]model.Instrument, error) {
	if limit <= 0 {
		limit = defaultHotLimit
	}
	if limit > maxHotLimit {
		limit = maxHotLimit
	}
	return s.instruments.Hot(ctx, s.now().UTC().Add(-hotWindow), limit)
}

func (s *instrumentService) Suggest(ctx context.Context, q string) (*Suggestions, error) {
	q = strings.TrimSpace(q)
	out := &Suggestions{Instruments: []model.Instrument{}, Categories: []model.Category{}}
	if utf8.RuneCountInString(q) < minSuggestRunes {
		return out, nil
	}
	insts, err := s.instruments.Suggest(ctx, q, maxTitleSuggests)
	if err != nil {
		return nil, err
	}
	cats, err := s.categories.SearchByName(ctx, q, maxCatSuggests)
	if err != nil {
		return nil, err
	}
	if insts != nil {
		out.Instruments = insts
	}
	if cats != nil {
		out.Categories = cats
	}
	return out, nil
}

// authorize loads the listing and checks that actor owns it or is an admin.
func (s *instrumentService) authorize(ctx context.Context, id, actorID uint64) (*model.Instrument, *model.User, error) {
	inst, err := s.instruments.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "instrument")
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	if inst.OwnerID != actorID && !actor.IsAdmin() {
		return nil, nil, forbidden("not the owner of instrument %d", id)
	}
	return inst, actor, nil
}

func (s *instrumentService) Update(ctx context.Context, id, actorID uint64, patch InstrumentPatch, images []Upload) (*model.Instrument, error) {
	_, actor, err := s.authorize(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
			return nil, invalid("title is required and at most %d characters", maxTitleLen)
		}
		fields["title"] = title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" {
			return nil, invalid("description is required")
		}
		fields["description"] = desc
	}
	if patch.Price != nil {
		price := patch.Price.Round(2)
		if !price.IsPositive() {
			return nil, invalid("price must be at least 0.01")
		}
		fields["price"] = price
	}
	if patch.OriginalPrice != nil {
		orig := patch.OriginalPrice.Round(2)
		if orig.IsNegative() {
			return nil, invalid("original price must not be negative")
		}
		fields["original_price"] = orig
	}
	if patch.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *patch.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, invalid("unknown category %d", *patch.CategoryID)
			}
			return nil, err
		}
		fields["category_id"] = *patch.CategoryID
	}
	if patch.Condition != nil {
		if !patch.Condition.Valid() {
			return nil, invalid("unknown condition %q", *patch.Condition)
		}
		fields["instrument_condition"] = *patch.Condition
	}
	if patch.Brand != nil {
		fields["brand"] = strings.TrimSpace(*patch.Brand)
	}
	if patch.Model != nil {
		fields["model"] = strings.TrimSpace(*patch.Model)
	}
	if patch.Location != nil {
		fields["location"] = strings.TrimSpace(*patch.Location)
	}
	if patch.Status != nil {
		if !actor.IsAdmin() {
			return nil, forbidden("only admins can change listing status")
		}
		st := *patch.Status
		if st != model.InstrumentStatusAvailable && st != model.InstrumentStatusRemoved {
			return nil, invalid("status can only be set to available or removed")
		}
	}

	var stored []model.InstrumentImage
	if len(images) > 0 {
		if stored, err = s.saveImages(ctx, images, 0); err != nil {
			return nil, err
		}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.instruments.Update(ctx, id, fields); err != nil {
			return notFound(err, "instrument")
		}
		if patch.Status != nil {
			if err := s.setStatus(ctx, id, *patch.Status); err != nil {
				return err
			}
		}
		if stored != nil {
			return s.instruments.ReplaceImages(ctx, id, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.instruments.FindDetail(ctx, id)
}

// removableFrom excludes pending: an open order holds the listing until it
// completes or is cancelled.
var removableFrom = []model.InstrumentStatus{
	model.InstrumentStatusAvailable,
	model.InstrumentStatusRemoved,
	model.InstrumentStatusSold,
}

// setStatus applies an owner/admin status change. A listing that was sold
// never becomes available again.
func (s *instrumentService) setStatus(ctx context.Context, id uint64, to model.InstrumentStatus) error {
	from := removableFrom
	if to == model.InstrumentStatusAvailable {
		from = []model.InstrumentStatus{model.InstrumentStatusAvailable, model.InstrumentStatusRemoved}
		sold, err := s.orders.CountByInstrument(ctx, id, model.OrderStatusCompleted)
		if err != nil {
			return err
		}
		if sold > 0 {
			return conflict("instrument %d has already been sold", id)
		}
	}
	ok, err := s.instruments.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return conflict("instrument %d is reserved by an open order", id)
	}
	return nil
}

// Remove hides the listing. Listings reserved by an open order cannot be
// removed.
func (s *instrumentService) Remove(ctx context.Context, id, actorID uint64) error {
	if _, _, err := s.authorize(ctx, id, actorID); err != nil {
		return err
	}
	return s.setStatus(ctx, id, model.InstrumentStatusRemoved)
}

func (s *instrumentService) Purge(ctx context.Context, id, actorID uint64) error {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if !actor.IsAdmin() {
		return forbidden("only admins can purge listings")
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.instruments.FindByIDForUpdate(ctx, id); err != nil {
			return notFound(err, "instrument")
		}
		cnt, err := s.orders.CountByInstrument(ctx, id)
		if err != nil {
			return err
		}
		if cnt > 0 {
			return conflict("instrument %d is referenced by %d orders", id, cnt)
		}
		return s.instruments.Purge(ctx, id)
	})
}

func (s *instrumentService) UploadImages(ctx context.Context, id, actorID uint64, files []Upload, isMain bool) ([]model.InstrumentImage, error) {
	if len(files) == 0 {
		return nil, invalid("no files uploaded")
	}
	if _, _, err := s.authorize(ctx, id, actorID); err != nil {
		return nil, err
	}
	images := make([]model.InstrumentImage, 0, len(files))
	for i, f := range files {
		ref, err := s.saveFile(ctx, "images", f, storage.ImageExts)
		if err != nil {
			return nil, err
		}
		images = append(images, model.InstrumentImage{ImageURL: ref, IsMain: isMain && i == 0})
	}
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.instruments.AddImages(ctx, id, images)
	}); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *instrumentService) ListByUser(ctx context.Context, userID uint64, page, pageSize int) (*model.User, []model.Instrument, pagination.Meta, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, pagination.Meta{}, notFound(err, "user")
	}
	p := pagination.Calculate(page, pageSize)
	list, total, err := s.instruments.ListByOwner(ctx, userID, true, p.Offset, p.PageSize)
	if err != nil {
		return nil, nil, pagination.Meta{}, err
	}
	return u, list, p.Meta(total), nil
}

func (s *instrumentService) ListMine(ctx context.Context, ownerID uint64) ([]model.Instrument, error) {
	list, _, err := s.instruments.ListByOwner(ctx, ownerID, false, 0, 0)
	return list, err
}

func (s *instrumentService) ContactSeller(ctx context.Context, id, callerID uint64, message string) (*SellerContact, error) {
	message = strings.TrimSpace(message)
	inst, err := s.instruments.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "instrument")
	}
	if inst.OwnerID == callerID {
		return nil, invalid("cannot contact yourself")
	}
	if message == "" {
		return nil, invalid("message is required")
	}
	seller, err := s.users.FindByID(ctx, inst.OwnerID)
	if err != nil {
		return nil, notFound(err, "seller")
	}

	contact := &SellerContact{SellerID: seller.ID, SellerName: seller.RealName}
	if contact.SellerName == "" {
		contact.SellerName = seller.Username
	}
	if seller.Phone != nil && *seller.Phone != "" {
		contact.Methods = append(contact.Methods, ContactMethod{Type: "phone", Value: *seller.Phone})
	}
	if seller.Email != "" {
		contact.Methods = append(contact.Methods, ContactMethod{Type: "email", Value: seller.Email})
	}

	instID := inst.ID
	s.notifications.Notify(ctx, seller.ID, model.NotificationTypeContactSeller,
		fmt.Sprintf("New message about %s", inst.Title), message, &instID, nil)
	return contact, nil
}
