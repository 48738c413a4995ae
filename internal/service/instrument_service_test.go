package service

import (
	"context"
	"testing"
	"time"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstCategoryID(t *testing.T, f *fixture) uint64 {
	t.Helper()
	cats, err := f.categorySvc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, len(DefaultCategories))
	return cats[0].ID
}

func TestCreateInstrument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	catID := firstCategoryID(t, f)

	orig := decimal.RequireFromString("2000")
	audio := upload("demo.mp3", "mp3")
	inst, err := f.instrumentSvc.Create(ctx, seller.ID, InstrumentInput{
		Title:         "  Martin D-28 ",
		Description:   "Solid top",
		Price:         decimal.RequireFromString("1500.456"),
		OriginalPrice: &orig,
		CategoryID:    catID,
		Brand:         "Martin",
	}, []Upload{upload("a.png", "a"), upload("b.JPG", "b")}, &audio, 1)
	require.NoError(t, err)

	assert.Equal(t, "Martin D-28", inst.Title)
	assert.Equal(t, "1500.46", inst.Price.StringFixed(2))
	assert.Equal(t, model.ConditionGood, inst.Condition)
	assert.Equal(t, model.InstrumentStatusAvailable, inst.Status)
	require.NotNil(t, inst.AudioURL)
	require.Len(t, inst.Images, 2)
	assert.True(t, inst.Images[0].IsMain)
	assert.Contains(t, inst.Images[0].ImageURL, ".jpg")
	require.NotNil(t, inst.Category)
	assert.Len(t, f.store.files, 3)
}

func TestCreateInstrumentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	catID := firstCategoryID(t, f)

	valid := InstrumentInput{Title: "Piano", Description: "Upright", Price: decimal.NewFromInt(100), CategoryID: catID}

	cases := map[string]func(in *InstrumentInput){
		"empty title":       func(in *InstrumentInput) { in.Title = " " },
		"no description":    func(in *InstrumentInput) { in.Description = "" },
		"zero price":        func(in *InstrumentInput) { in.Price = decimal.Zero },
		"sub-cent price":    func(in *InstrumentInput) { in.Price = decimal.RequireFromString("0.004") },
		"negative original": func(in *InstrumentInput) { o := decimal.RequireFromString("-0.01"); in.OriginalPrice = &o },
		"missing category":  func(in *InstrumentInput) { in.CategoryID = 0 },
		"unknown category":  func(in *InstrumentInput) { in.CategoryID = 9999 },
		"unknown condition": func(in *InstrumentInput) { in.Condition = "broken" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			_, err := f.instrumentSvc.Create(ctx, seller.ID, in, nil, nil, 0)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	_, err := f.instrumentSvc.Create(ctx, seller.ID, valid, []Upload{upload("virus.exe", "x")}, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGetInstrumentCountsViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	viewer := f.user(t, "viewer1", model.UserRoleUser)
	inst := f.instrument(t, seller.ID, "100.00")

	d, err := f.instrumentSvc.Get(ctx, inst.ID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Instrument.ViewCount)
	assert.False(t, d.IsFavorited)
	require.NotNil(t, d.Instrument.Owner)

	_, _, err = f.favoriteSvc.Toggle(ctx, viewer.ID, inst.ID)
	require.NoError(t, err)

	d, err = f.instrumentSvc.Get(ctx, inst.ID, viewer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, d.Instrument.ViewCount)
	assert.True(t, d.IsFavorited)

	var views int64
	require.NoError(t, f.db.Model(&model.ViewHistory{}).Count(&views).Error)
	assert.EqualValues(t, 1, views)

	_, err = f.instrumentSvc.Get(ctx, 9999, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRemovedInstrument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	viewer := f.user(t, "viewer1", model.UserRoleUser)
	admin := f.user(t, "admin1", model.UserRoleAdmin)
	inst := f.instrument(t, seller.ID, "100")
	require.NoError(t, f.instrumentSvc.Remove(ctx, inst.ID, seller.ID))

	_, err := f.instrumentSvc.Get(ctx, inst.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.instrumentSvc.Get(ctx, inst.ID, viewer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.reload(t, inst.ID).ViewCount, "hidden listings do not count views")

	d, err := f.instrumentSvc.Get(ctx, inst.ID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstrumentStatusRemoved, d.Instrument.Status)
	_, err = f.instrumentSvc.Get(ctx, inst.ID, admin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.reload(t, inst.ID).ViewCount)
}

func TestSearchAndHot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	for i, price := range []string{"50", "150", "250"} {
		inst := f.instrument(t, seller.ID, price)
		require.NoError(t, f.instruments.Update(ctx, inst.ID, map[string]interface{}{"view_count": i * 10}))
	}
	old := f.instrument(t, seller.ID, "999")
	require.NoError(t, f.db.Model(old).UpdateColumn("created_at", time.Now().UTC().Add(-10*24*time.Hour)).Error)

	list, meta, err := f.instrumentSvc.Search(ctx, SearchParams{SortBy: "price", SortOrder: "asc", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "50.00", list[0].Price.StringFixed(2))
	assert.EqualValues(t, 4, meta.Total)
	assert.Equal(t, 2, meta.Pages)
	assert.True(t, meta.HasNext)

	lo, hi := decimal.NewFromInt(200), decimal.NewFromInt(100)
	_, _, err = f.instrumentSvc.Search(ctx, SearchParams{MinPrice: &lo, MaxPrice: &hi})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	hot, err := f.instrumentSvc.Hot(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hot, 3)
	assert.Equal(t, "250.00", hot[0].Price.StringFixed(2))
}

func TestSuggest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	f.instrument(t, seller.ID, "100")

	s, err := f.instrumentSvc.Suggest(ctx, "Y")
	require.NoError(t, err)
	assert.Empty(t, s.Instruments)

	s, err = f.instrumentSvc.Suggest(ctx, "yamaha")
	require.NoError(t, err)
	require.Len(t, s.Instruments, 1)
	assert.Equal(t, "Yamaha F310", s.Instruments[0].Title)

	s, err = f.instrumentSvc.Suggest(ctx, "吉他")
	require.NoError(t, err)
	require.Len(t, s.Categories, 1)
}

func TestRemoveAndUpdateInstrument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	buyer := f.user(t, "buyer1", model.UserRoleUser)
	admin := f.user(t, "admin1", model.UserRoleAdmin)
	inst := f.instrument(t, seller.ID, "100")

	assert.ErrorIs(t, f.instrumentSvc.Remove(ctx, inst.ID, buyer.ID), ErrForbidden)

	title := "Yamaha F310 (new strings)"
	updated, err := f.instrumentSvc.Update(ctx, inst.ID, seller.ID, InstrumentPatch{Title: &title}, []Upload{upload("c.gif", "c")})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	require.Len(t, updated.Images, 1)

	removed := model.InstrumentStatusRemoved
	_, err = f.instrumentSvc.Update(ctx, inst.ID, seller.ID, InstrumentPatch{Status: &removed}, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	tiny := decimal.RequireFromString("0.001")
	_, err = f.instrumentSvc.Update(ctx, inst.ID, seller.ID, InstrumentPatch{Price: &tiny}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, decimal.NewFromInt(100).Equal(f.reload(t, inst.ID).Price))

	order, err := f.orderSvc.Create(ctx, CreateOrderInput{InstrumentID: inst.ID, BuyerID: buyer.ID, Quantity: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, f.instrumentSvc.Remove(ctx, inst.ID, seller.ID), ErrConflict)
	_, err = f.instrumentSvc.Update(ctx, inst.ID, admin.ID, InstrumentPatch{Status: &removed}, nil)
	assert.ErrorIs(t, err, ErrConflict)
	f.requireListingConsistent(t, inst.ID)

	_, err = f.orderSvc.UpdateStatus(ctx, order.ID, buyer.ID, "cancelled", "")
	require.NoError(t, err)

	require.NoError(t, f.instrumentSvc.Remove(ctx, inst.ID, seller.ID))
	assert.Equal(t, model.InstrumentStatusRemoved, f.reload(t, inst.ID).Status)

	available := model.InstrumentStatusAvailable
	_, err = f.instrumentSvc.Update(ctx, inst.ID, admin.ID, InstrumentPatch{Status: &available}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.InstrumentStatusAvailable, f.reload(t, inst.ID).Status)
}

func TestRemoveSoldInstrument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	buyer := f.user(t, "buyer1", model.UserRoleUser)
	admin := f.user(t, "admin1", model.UserRoleAdmin)
	inst := f.instrument(t, seller.ID, "100")
	other := f.instrument(t, seller.ID, "50")

	for _, id := range []uint64{inst.ID, other.ID} {
		order, err := f.orderSvc.Create(ctx, CreateOrderInput{InstrumentID: id, BuyerID: buyer.ID, Quantity: 1})
		require.NoError(t, err)
		for _, st := range []struct {
			actor  uint64
			status string
		}{{buyer.ID, "paid"}, {seller.ID, "shipped"}, {buyer.ID, "completed"}} {
			_, err = f.orderSvc.UpdateStatus(ctx, order.ID, st.actor, st.status, "")
			require.NoError(t, err)
		}
		require.Equal(t, model.InstrumentStatusSold, f.reload(t, id).Status)
	}

	require.NoError(t, f.instrumentSvc.Remove(ctx, inst.ID, seller.ID))
	assert.Equal(t, model.InstrumentStatusRemoved, f.reload(t, inst.ID).Status)
	f.requireListingConsistent(t, inst.ID)

	removed := model.InstrumentStatusRemoved
	_, err := f.instrumentSvc.Update(ctx, other.ID, admin.ID, InstrumentPatch{Status: &removed}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.InstrumentStatusRemoved, f.reload(t, other.ID).Status)

	// A sold listing never goes back on sale.
	available := model.InstrumentStatusAvailable
	_, err = f.instrumentSvc.Update(ctx, inst.ID, admin.ID, InstrumentPatch{Status: &available}, nil)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.InstrumentStatusRemoved, f.reload(t, inst.ID).Status)
	f.requireListingConsistent(t, inst.ID)
}

func TestPurgeInstrument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	buyer := f.user(t, "buyer1", model.UserRoleUser)
	admin := f.user(t, "admin1", model.UserRoleAdmin)
	sold := f.instrument(t, seller.ID, "100")
	spare := f.instrument(t, seller.ID, "100")

	_, err := f.orderSvc.Create(ctx, CreateOrderInput{InstrumentID: sold.ID, BuyerID: buyer.ID, Quantity: 1})
	require.NoError(t, err)
	_, _, err = f.favoriteSvc.Toggle(ctx, buyer.ID, spare.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.instrumentSvc.Purge(ctx, spare.ID, seller.ID), ErrForbidden)
	assert.ErrorIs(t, f.instrumentSvc.Purge(ctx, sold.ID, admin.ID), ErrConflict)
	require.NoError(t, f.instrumentSvc.Purge(ctx, spare.ID, admin.ID))
	assert.ErrorIs(t, f.instrumentSvc.Purge(ctx, spare.ID, admin.ID), ErrNotFound)

	favs, err := f.favoriteSvc.List(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestUploadImagesAndListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	inst := f.instrument(t, seller.ID, "100")
	hidden := f.instrument(t, seller.ID, "100")
	require.NoError(t, f.instrumentSvc.Remove(ctx, hidden.ID, seller.ID))

	imgs, err := f.instrumentSvc.UploadImages(ctx, inst.ID, seller.ID, []Upload{upload("x.png", "x"), upload("y.png", "y")}, true)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.True(t, imgs[0].IsMain)
	assert.False(t, imgs[1].IsMain)

	_, err = f.instrumentSvc.UploadImages(ctx, inst.ID, seller.ID, nil, false)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	u, public, meta, err := f.instrumentSvc.ListByUser(ctx, seller.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "seller1", u.Username)
	assert.Len(t, public, 1)
	assert.EqualValues(t, 1, meta.Total)

	mine, err := f.instrumentSvc.ListMine(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, _, _, err = f.instrumentSvc.ListByUser(ctx, 9999, 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller1", model.UserRoleSeller)
	buyer := f.user(t, "buyer1", model.UserRoleUser)
	inst := f.instrument(t, seller.ID, "100")

	_, err := f.instrumentSvc.ContactSeller(ctx, inst.ID, seller.ID, "hi")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.instrumentSvc.ContactSeller(ctx, inst.ID, buyer.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	contact, err := f.instrumentSvc.ContactSeller(ctx, inst.ID, buyer.ID, "Is it still available?")
	require.NoError(t, err)
	assert.Equal(t, "seller1", contact.SellerName)
	require.Len(t, contact.Methods, 1)
	assert.Equal(t, "email", contact.Methods[0].Type)

	notes, unread, err := f.notifySvc.List(ctx, seller.ID, true, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
	require.Len(t, notes, 1)
	assert.Equal(t, "Is it still available?", notes[0].Body)

	_, err = f.instrumentSvc.ContactSeller(ctx, inst.ID, buyer.ID, "Can I try it first?")
	require.NoError(t, err)

	n, err := f.notifySvc.MarkRead(ctx, seller.ID, []uint64{notes[0].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = f.notifySvc.MarkRead(ctx, buyer.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, unread, err = f.notifySvc.List(ctx, seller.ID, true, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	n, err = f.notifySvc.MarkRead(ctx, seller.ID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, unread, err = f.notifySvc.List(ctx, seller.ID, true, 10)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
