package service

import (
	"context"
	"testing"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin1", model.UserRoleAdmin)
	seller := f.user(t, "seller1", model.UserRoleSeller)
	buyer := f.user(t, "buyer1", model.UserRoleUser)
	a := f.instrument(t, seller.ID, "120.00")
	f.instrument(t, seller.ID, "30.00")

	order, err := f.orderSvc.Create(ctx, CreateOrderInput{InstrumentID: a.ID, BuyerID: buyer.ID, Quantity: 1})
	require.NoError(t, err)
	for _, st := range []string{"paid", "shipped", "completed"} {
		_, err = f.orderSvc.UpdateStatus(ctx, order.ID, buyer.ID, st, "")
		require.NoError(t, err)
	}

	_, err = f.statsSvc.Dashboard(ctx, buyer.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	d, err := f.statsSvc.Dashboard(ctx, admin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, d.Users.Total)
	assert.EqualValues(t, 3, d.Users.Today)
	assert.EqualValues(t, 2, d.Instruments.Total)
	assert.EqualValues(t, 1, d.Orders.Total)
	assert.Equal(t, "120.00", d.Sales.StringFixed(2))
	assert.Equal(t, "120.00", d.SalesToday.StringFixed(2))
}
