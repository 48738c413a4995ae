package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/db"
	"github.com/shinyyama/instrument-market/internal/events"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStore) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	ref := "/uploads/" + folder + "/" + filename
	m.files[ref] = data
	return ref, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) PublishOrder(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.events...)
}

type fixture struct {
	db    *gorm.DB
	store *memStore
	pub   *recordingPublisher

	users       repository.UserRepository
	instruments repository.InstrumentRepository
	orders      repository.OrderRepository

	userSvc       UserService
	categorySvc   CategoryService
	instrumentSvc InstrumentService
	favoriteSvc   FavoriteService
	cartSvc       CartService
	orderSvc      OrderService
	notifySvc     NotificationService
	statsSvc      StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := db.NewTestDB(t)

	tx := repository.NewTransactor(gdb)
	users := repository.NewUserRepository(gdb)
	categories := repository.NewCategoryRepository(gdb)
	instruments := repository.NewInstrumentRepository(gdb)
	favorites := repository.NewFavoriteRepository(gdb)
	carts := repository.NewCartRepository(gdb)
	orders := repository.NewOrderRepository(gdb)
	notifications := repository.NewNotificationRepository(gdb)

	f := &fixture{
		db:          gdb,
		store:       &memStore{},
		pub:         &recordingPublisher{},
		users:       users,
		instruments: instruments,
		orders:      orders,
	}
	f.notifySvc = NewNotificationService(notifications)
	f.userSvc = NewUserService(users, auth.NewIssuer("test-secret", time.Hour))
	f.categorySvc = NewCategoryService(categories)
	f.instrumentSvc = NewInstrumentService(tx, instruments, categories, users, favorites, orders, f.store, f.notifySvc)
	f.favoriteSvc = NewFavoriteService(tx, favorites, instruments)
	f.cartSvc = NewCartService(carts, instruments)
	f.orderSvc = NewOrderService(tx, orders, instruments, carts, f.notifySvc, f.pub)
	f.statsSvc = NewStatsService(users, instruments, orders)

	_, err := f.categorySvc.EnsureDefaults(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T, name string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := &model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: hash,
		Role:         role,
		CreditScore:  100,
		IsVerified:   true,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) instrument(t *testing.T, ownerID uint64, price string) *model.Instrument {
	t.Helper()
	inst := &model.Instrument{
		Title:       "Yamaha F310",
		Description: "Acoustic guitar in good shape",
		Price:       decimal.RequireFromString(price),
		OwnerID:     ownerID,
		Condition:   model.ConditionGood,
		Status:      model.InstrumentStatusAvailable,
	}
	require.NoError(t, f.db.Create(inst).Error)
	return inst
}

func (f *fixture) reload(t *testing.T, id uint64) *model.Instrument {
	t.Helper()
	inst, err := f.instruments.FindByID(context.Background(), id)
	require.NoError(t, err)
	return inst
}

// requireListingConsistent checks that the listing status agrees with the
// orders referencing it.
func (f *fixture) requireListingConsistent(t *testing.T, id uint64) {
	t.Helper()
	ctx := context.Background()
	inst := f.reload(t, id)
	open, err := f.orders.CountByInstrument(ctx, id, model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusShipped)
	require.NoError(t, err)
	completed, err := f.orders.CountByInstrument(ctx, id, model.OrderStatusCompleted)
	require.NoError(t, err)

	switch inst.Status {
	case model.InstrumentStatusPending:
		require.EqualValues(t, 1, open, "pending listing needs exactly one open order")
		require.Zero(t, completed)
	case model.InstrumentStatusSold:
		require.EqualValues(t, 1, completed, "sold listing needs exactly one completed order")
		require.Zero(t, open)
	case model.InstrumentStatusAvailable:
		require.Zero(t, open, "available listing must not have open orders")
		require.Zero(t, completed)
	case model.InstrumentStatusRemoved:
		require.Zero(t, open, "removed listing must not have open orders")
		require.LessOrEqual(t, completed, int64(1))
	}
}

func upload(name, body string) Upload {
	return Upload{Filename: name, Body: bytes.NewBufferString(body)}
}
