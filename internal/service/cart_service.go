package service

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shopspring/decimal"
)

type CartLine struct {
	Item      model.CartItem
	LineTotal decimal.Decimal
}

// Cart lists the entries whose listing can still be bought.
type Cart struct {
	Lines []CartLine
	Total decimal.Decimal
}

type CartService interface {
	Add(ctx context.Context, userID, instrumentID uint64, quantity int) (*model.CartItem, error)
	Remove(ctx context.Context, userID, entryID uint64) error
	List(ctx context.Context, userID uint64) (*Cart, error)
}

type cartService struct {
	carts       repository.CartRepository
	instruments repository.InstrumentRepository
}

func NewCartService(carts repository.CartRepository, instruments repository.InstrumentRepository) CartService {
	return &cartService{carts: carts, instruments: instruments}
}

func (s *cartService) Add(ctx context.Context, userID, instrumentID uint64, quantity int) (*model.CartItem, error) {
	if quantity < 1 {
		return nil, invalid("quantity must be at least 1")
	}
	inst, err := s.instruments.FindByID(ctx, instrumentID)
	if err != nil {
		return nil, notFound(err, "instrument")
	}
	if inst.OwnerID == userID {
		return nil, invalid("cannot add your own instrument to the cart")
	}
	if inst.Status != model.InstrumentStatusAvailable {
		return nil, conflict("instrument %d is not available", instrumentID)
	}
	return s.carts.Add(ctx, userID, instrumentID, quantity)
}

func (s *cartService) Remove(ctx context.Context, userID, entryID uint64) error {
	item, err := s.carts.FindByID(ctx, entryID)
	if err != nil {
		return notFound(err, "cart entry")
	}
	if item.UserID != userID {
		return forbidden("cart entry %d belongs to another user", entryID)
	}
	if err := s.carts.Delete(ctx, entryID); err != nil {
		return notFound(err, "cart entry")
	}
	return nil
}

func (s *cartService) List(ctx context.Context, userID uint64) (*Cart, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart := &Cart{Lines: []CartLine{}, Total: decimal.Zero}
	for _, it := range items {
		if it.Instrument == nil || it.Instrument.Status != model.InstrumentStatusAvailable {
			continue
		}
		line := it.Instrument.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		cart.Lines = append(cart.Lines, CartLine{Item: it, LineTotal: line})
		cart.Total = cart.Total.Add(line)
	}
	return cart, nil
}
