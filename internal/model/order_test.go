package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusCompleted, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPaid, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatus("refunded"), OrderStatusPaid, false},
		{OrderStatusPending, OrderStatus("refunded"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusPaid.Terminal())
	assert.False(t, OrderStatusShipped.Terminal())
	assert.False(t, OrderStatus("bogus").Terminal())
}

func TestListingStatusOnEnter(t *testing.T) {
	st, ok := OrderStatusCompleted.ListingStatusOnEnter()
	assert.True(t, ok)
	assert.Equal(t, InstrumentStatusSold, st)

	st, ok = OrderStatusCancelled.ListingStatusOnEnter()
	assert.True(t, ok)
	assert.Equal(t, InstrumentStatusAvailable, st)

	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusShipped} {
		_, ok := s.ListingStatusOnEnter()
		assert.False(t, ok, s)
	}
}

func TestInstrumentMainImage(t *testing.T) {
	inst := &Instrument{}
	assert.Nil(t, inst.MainImage())

	inst.Images = []InstrumentImage{{ImageURL: "a.png"}, {ImageURL: "b.png", IsMain: true}}
	assert.Equal(t, "b.png", *inst.MainImage())

	inst.Images = []InstrumentImage{{ImageURL: "a.png"}}
	assert.Equal(t, "a.png", *inst.MainImage())
}
