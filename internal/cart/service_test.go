package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopchat-core/pkg/db"
	"github.com/angelmondragon/shopchat-core/pkg/db/dbtest"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)
	return svc, client
}

func seedProduct(t *testing.T, client *db.Client, name string, price int64) models.Product {
	t.Helper()
	p := models.Product{ShopID: uuid.New(), Name: name, Price: decimal.NewFromInt(price), Stock: 5, IsActive: true}
	require.NoError(t, client.DB().Create(&p).Error)
	return p
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestAddMergesSameProductAndVariant(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	shop, customer := uuid.New(), uuid.New()
	shirt := seedProduct(t, client, "Shirt", 10)
	hat := seedProduct(t, client, "Hat", 4)
	red := "red"

	_, err := svc.Add(ctx, shop, customer, shirt, &red, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, shop, customer, hat, nil, 2)
	require.NoError(t, err)
	cart, err := svc.Add(ctx, shop, customer, shirt, &red, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, shirt.ID, cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, hat.ID, cart.Items[1].ProductID)
	assert.True(t, decimal.NewFromInt(38).Equal(Total(cart)))

	blue := "blue"
	cart, err = svc.Add(ctx, shop, customer, shirt, &blue, 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 3)
}

func TestAddSnapshotsPrice(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	shop, customer := uuid.New(), uuid.New()
	mug := seedProduct(t, client, "Mug", 7)

	_, err := svc.Add(ctx, shop, customer, mug, nil, 1)
	require.NoError(t, err)
	require.NoError(t, client.DB().Model(&models.Product{}).Where("id = ?", mug.ID).Update("price", 99).Error)

	cart, err := svc.Get(ctx, shop, customer)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.NewFromInt(7).Equal(cart.Items[0].UnitPrice))
}

func TestRemovePartialAndWhole(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	shop, customer := uuid.New(), uuid.New()
	mug := seedProduct(t, client, "Mug", 7)

	_, err := svc.Add(ctx, shop, customer, mug, nil, 3)
	require.NoError(t, err)

	cart, err := svc.Remove(ctx, shop, customer, mug.ID, nil, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = svc.Remove(ctx, shop, customer, mug.ID, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = svc.Remove(ctx, shop, customer, mug.ID, nil, 1)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestClear(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	shop, customer := uuid.New(), uuid.New()
	mug := seedProduct(t, client, "Mug", 7)

	cart, err := svc.Add(ctx, shop, customer, mug, nil, 3)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, nil, cart.ID))

	cart, err = svc.Get(ctx, shop, customer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestAddChecksMergedQuantity(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	shop, customer := uuid.New(), uuid.New()
	mug := seedProduct(t, client, "Mug", 7)
	blue := "blue"

	_, err := svc.Add(ctx, shop, customer, mug, nil, 3)
	require.NoError(t, err)
	_, err = svc.Add(ctx, shop, customer, mug, nil, 3)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "already in the cart")

	// another variant of the same product draws on the same stock.
	_, err = svc.Add(ctx, shop, customer, mug, &blue, 3)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.CodeOf(err))

	cart, err := svc.Add(ctx, shop, customer, mug, &blue, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.Items[1].Quantity)
}

func TestAddCapsLineQuantity(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	shop, customer := uuid.New(), uuid.New()
	bolt := models.Product{ShopID: shop, Name: "Bolt", Price: decimal.NewFromInt(1), Stock: 1000, IsActive: true}
	require.NoError(t, client.DB().Create(&bolt).Error)

	_, err := svc.Add(ctx, shop, customer, bolt, nil, 60)
	require.NoError(t, err)
	_, err = svc.Add(ctx, shop, customer, bolt, nil, 41)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	cart, err := svc.Add(ctx, shop, customer, bolt, nil, 40)
	require.NoError(t, err)
	assert.Equal(t, MaxLineQuantity, cart.Items[0].Quantity)
}
