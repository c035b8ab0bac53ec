package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopchat-core/internal/cart"
	"github.com/angelmondragon/shopchat-core/internal/customers"
	"github.com/angelmondragon/shopchat-core/internal/ledger"
	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/internal/payments"
	"github.com/angelmondragon/shopchat-core/internal/products"
	"github.com/angelmondragon/shopchat-core/pkg/db"
	"github.com/angelmondragon/shopchat-core/pkg/db/dbtest"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

type nopOrderNotifier struct{}

func (nopOrderNotifier) OrderCreated(context.Context, models.Order) {}
func (nopOrderNotifier) OrderStatusChanged(context.Context, models.Order, enums.OrderStatus) {
}

type fakePayments struct {
	mu         sync.Mutex
	invoiceErr error
	created    []uuid.UUID
	reconciled []string
	outcome    payments.Outcome
}

func (f *fakePayments) CreateInvoice(_ context.Context, order models.Order) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	f.created = append(f.created, order.ID)
	qr := "qr"
	return &models.Payment{
		OrderID:   order.ID,
		Status:    enums.PaymentStatusPending,
		Amount:    order.TotalAmount,
		InvoiceID: "inv-" + order.ID.String(),
		QRPayload: &qr,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

func (f *fakePayments) LatestForOrder(_ context.Context, order models.Order) (*models.Payment, error) {
	return &models.Payment{OrderID: order.ID, Status: enums.PaymentStatusPending, InvoiceID: "inv-" + order.ID.String(), Amount: order.TotalAmount}, nil
}

func (f *fakePayments) Reconcile(_ context.Context, invoiceID string) (*payments.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, invoiceID)
	status := enums.PaymentStatusPending
	if f.outcome == payments.OutcomeSettled {
		status = enums.PaymentStatusPaid
	}
	return &payments.Result{Outcome: f.outcome, Payment: &models.Payment{InvoiceID: invoiceID, Status: status}}, nil
}

type recordingHandoff struct {
	calls int
}

func (h *recordingHandoff) HumanSupportRequested(context.Context, uuid.UUID, models.Customer, string) {
	h.calls++
}

type harness struct {
	client   *db.Client
	exec     *Executor
	payments *fakePayments
	handoff  *recordingHandoff
	session  Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(conn),
		Tx:       client,
		Ledger:   ledger.New(conn, nil),
		Notifier: nopOrderNotifier{},
	})
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn), client)
	require.NoError(t, err)

	customerRepo := customers.NewRepository(conn)
	shopID := uuid.New()
	customer, _, err := customerRepo.UpsertByExternalID(context.Background(), shopID, "psid-1")
	require.NoError(t, err)

	fp := &fakePayments{outcome: payments.OutcomeNotPaid}
	handoff := &recordingHandoff{}
	exec, err := NewExecutor(ExecutorParams{
		Catalog:        NewCatalog(),
		Products:       products.NewRepository(conn),
		Customers:      customerRepo,
		Cart:           cartSvc,
		Orders:         orderSvc,
		Payments:       fp,
		Handoff:        handoff,
		PlaceholderURL: "https://cdn.example.com/placeholder.png",
	})
	require.NoError(t, err)

	return &harness{
		client:   client,
		exec:     exec,
		payments: fp,
		handoff:  handoff,
		session:  Session{ShopID: shopID, CustomerID: customer.ID},
	}
}

func (h *harness) product(t *testing.T, name string, stock, reserved int, image *string) models.Product {
	t.Helper()
	p := models.Product{
		ShopID:        h.session.ShopID,
		Name:          name,
		Price:         decimal.NewFromInt(10),
		Stock:         stock,
		ReservedStock: reserved,
		ImageURL:      image,
		IsActive:      true,
	}
	require.NoError(t, h.client.DB().Create(&p).Error)
	return p
}

func (h *harness) run(name, args string) Result {
	return h.exec.Execute(context.Background(), h.session, name, json.RawMessage(args))
}

func (h *harness) reserved(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, h.client.DB().First(&p, "id = ?", id).Error)
	return p.ReservedStock
}

func (h *harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestCreateOrderInsufficientStockMakesNoWrites(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "Test Product", 10, 2, nil)

	res := h.run("create_order", `{"product_name":"Test Product","quantity":20}`)
	assert.False(t, res.Success)
	assert.Contains(t, strings.ToLower(res.Error), "stock")
	assert.Equal(t, 2, h.reserved(t, p.ID))
	assert.Equal(t, int64(0), h.orderCount(t))
	assert.Empty(t, h.payments.created)
}

func TestCreateOrderFuzzyMatchAndInvoice(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "Blue Ceramic Mug", 5, 0, nil)

	res := h.run("create_order", `{"product_name":"ceramic mug","quantity":2}`)
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Message, "QR")
	view, ok := res.Data.(orderView)
	require.True(t, ok)
	assert.Equal(t, "20.00", view.Total)
	require.NotNil(t, view.Payment)
	assert.Equal(t, 2, h.reserved(t, p.ID))
	assert.Len(t, h.payments.created, 1)
}

func TestCreateOrderInvoiceFailureKeepsOrder(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "Mug", 5, 0, nil)
	h.payments.invoiceErr = errors.New("gateway down")

	res := h.run("create_order", `{"product_name":"mug","quantity":1}`)
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Message, "Payment details will follow")
	assert.Equal(t, 1, h.reserved(t, p.ID))
	assert.Equal(t, int64(1), h.orderCount(t))
}

func TestCartFlowThroughCheckout(t *testing.T) {
	h := newHarness(t)
	mug := h.product(t, "Mug", 5, 0, nil)
	hat := h.product(t, "Hat", 5, 0, nil)

	require.True(t, h.run("add_to_cart", `{"product_name":"mug","quantity":2}`).Success)
	require.True(t, h.run("add_to_cart", `{"product_name":"hat","quantity":1}`).Success)
	require.True(t, h.run("remove_from_cart", `{"product_name":"hat"}`).Success)

	view := h.run("view_cart", `{}`)
	require.True(t, view.Success)
	cv := view.Data.(cartView)
	require.Len(t, cv.Items, 1)
	assert.Equal(t, "20.00", cv.Total)
	assert.Equal(t, 0, h.reserved(t, mug.ID))

	res := h.run("checkout", `{}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, h.reserved(t, mug.ID))
	assert.Equal(t, 0, h.reserved(t, hat.ID))

	after := h.run("view_cart", `{}`)
	assert.Empty(t, after.Data.(cartView).Items)

	empty := h.run("checkout", `{}`)
	assert.False(t, empty.Success)
	assert.Contains(t, empty.Error, "empty")
}

func TestCheckoutInsufficientStockKeepsCart(t *testing.T) {
	h := newHarness(t)
	mug := h.product(t, "Mug", 3, 0, nil)
	require.True(t, h.run("add_to_cart", `{"product_name":"mug","quantity":3}`).Success)
	require.NoError(t, h.client.DB().Model(&models.Product{}).Where("id = ?", mug.ID).Update("reserved_stock", 2).Error)

	res := h.run("checkout", `{}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "stock")
	assert.Len(t, h.run("view_cart", `{}`).Data.(cartView).Items, 1)
	assert.Equal(t, 2, h.reserved(t, mug.ID))
}

func TestAddToCartRejectsMoreThanAvailable(t *testing.T) {
	h := newHarness(t)
	h.product(t, "Mug", 3, 2, nil)

	res := h.run("add_to_cart", `{"product_name":"mug","quantity":2}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "stock")
}

func TestAddToCartCountsUnitsAlreadyInCart(t *testing.T) {
	h := newHarness(t)
	h.product(t, "Mug", 5, 1, nil)

	first := h.run("add_to_cart", `{"product_name":"mug","quantity":3}`)
	require.True(t, first.Success, first.Error)

	second := h.run("add_to_cart", `{"product_name":"mug","quantity":2}`)
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "stock")

	cv := h.run("view_cart", `{}`).Data.(cartView)
	require.Len(t, cv.Items, 1)
	assert.Equal(t, 3, cv.Items[0].Quantity)
}

func TestConcurrentCartAddsForOneCustomerAreSerialised(t *testing.T) {
	h := newHarness(t)
	h.product(t, "Mug", 50, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.run("add_to_cart", `{"product_name":"mug","quantity":1}`)
		}()
	}
	wg.Wait()

	cv := h.run("view_cart", `{}`).Data.(cartView)
	require.Len(t, cv.Items, 1)
	assert.Equal(t, 8, cv.Items[0].Quantity)
}

func TestCancelOrderReleasesStock(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "Mug", 5, 0, nil)

	none := h.run("cancel_order", `{}`)
	assert.False(t, none.Success)
	assert.Contains(t, none.Error, "no orders")

	require.True(t, h.run("create_order", `{"product_name":"mug","quantity":3}`).Success)
	res := h.run("cancel_order", `{"reason":"too slow"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "cancelled", res.Data.(orderView).Status)
	assert.Equal(t, 0, h.reserved(t, p.ID))

	again := h.run("cancel_order", `{}`)
	assert.False(t, again.Success)
}

func TestCancelOrderOfAnotherCustomerIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.product(t, "Mug", 5, 0, nil)
	require.True(t, h.run("create_order", `{"product_name":"mug","quantity":1}`).Success)

	var order models.Order
	require.NoError(t, h.client.DB().First(&order).Error)

	other := h.session
	other.CustomerID = uuid.New()
	res := h.exec.Execute(context.Background(), other, "cancel_order", json.RawMessage(`{"order_id":"`+order.ID.String()+`"}`))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestCheckPaymentStatusReconcilesPending(t *testing.T) {
	h := newHarness(t)
	h.product(t, "Mug", 5, 0, nil)
	require.True(t, h.run("create_order", `{"product_name":"mug","quantity":1}`).Success)

	res := h.run("check_payment_status", `{}`)
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Message, "not received")

	h.payments.outcome = payments.OutcomeSettled
	res = h.run("check_payment_status", `{}`)
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Message, "confirmed")
	assert.Len(t, h.payments.reconciled, 2)
}

func TestShowProductImageFallsBackToPlaceholder(t *testing.T) {
	h := newHarness(t)
	img := "https://cdn.example.com/hat.png"
	h.product(t, "Hat", 1, 0, &img)
	h.product(t, "Scarf", 1, 0, nil)

	res := h.run("show_product_image", `{"names":["hat","scarf","unicorn"]}`)
	require.True(t, res.Success, res.Error)
	data := res.Data.(map[string]any)
	images := data["images"].([]imageView)
	require.Len(t, images, 2)
	assert.Equal(t, img, images[0].URL)
	assert.True(t, images[1].Placeholder)
	assert.Equal(t, "https://cdn.example.com/placeholder.png", images[1].URL)
	assert.Equal(t, []string{"unicorn"}, data["not_found"])

	single := h.run("show_product_image", `{"names":["hat","scarf"],"mode":"single"}`)
	assert.Len(t, single.Data.(map[string]any)["images"], 1)

	none := h.run("show_product_image", `{"names":["unicorn"]}`)
	assert.False(t, none.Success)
}

func TestShowProductImageSingleModeReturnsFirstMatch(t *testing.T) {
	h := newHarness(t)
	hat := "https://cdn.example.com/hat.png"
	scarf := "https://cdn.example.com/scarf.png"
	h.product(t, "Hat", 1, 0, &hat)
	h.product(t, "Scarf", 1, 0, &scarf)

	res := h.run("show_product_image", `{"names":["unicorn","scarf","hat"],"mode":"single"}`)
	require.True(t, res.Success, res.Error)
	data := res.Data.(map[string]any)
	images := data["images"].([]imageView)
	require.Len(t, images, 1)
	assert.Equal(t, "Scarf", images[0].Product)
	assert.Equal(t, scarf, images[0].URL)
	assert.Equal(t, ImageModeSingle, data["mode"])

	all := h.run("show_product_image", `{"names":["scarf","hat"],"mode":"all"}`)
	require.True(t, all.Success, all.Error)
	assert.Len(t, all.Data.(map[string]any)["images"].([]imageView), 2)
}

func TestCustomerTools(t *testing.T) {
	h := newHarness(t)

	res := h.run("collect_contact_info", `{"name":"Ana","phone":"70012345"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Contact details saved.", res.Message)
	again := h.run("collect_contact_info", `{"name":"Ana"}`)
	assert.Equal(t, "Contact details were already up to date.", again.Message)

	require.True(t, h.run("remember_preference", `{"key":"size","value":"M"}`).Success)

	res = h.run("request_human_support", `{"reason":"refund"}`)
	require.True(t, res.Success)
	assert.Equal(t, 1, h.handoff.calls)

	var customer models.Customer
	require.NoError(t, h.client.DB().First(&customer, "id = ?", h.session.CustomerID).Error)
	assert.Equal(t, "M", customer.Preferences["size"])
	assert.True(t, customer.AIPaused(time.Now()))
}

func TestListAndStatusTools(t *testing.T) {
	h := newHarness(t)
	h.product(t, "Mug", 5, 1, nil)

	res := h.run("list_products", `{"query":"mu"}`)
	require.True(t, res.Success)
	list := res.Data.(map[string]any)["products"].([]productView)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].Available)

	status := h.run("check_order_status", `{}`)
	assert.False(t, status.Success)

	require.True(t, h.run("create_order", `{"product_name":"mug","quantity":1}`).Success)
	status = h.run("check_order_status", `{}`)
	require.True(t, status.Success)
	assert.Contains(t, status.Message, "pending")
}

func TestExecuteRejectsUnknownAndInvalid(t *testing.T) {
	h := newHarness(t)

	unknown := h.run("launch_rocket", `{}`)
	assert.False(t, unknown.Success)
	assert.Contains(t, unknown.Error, "unknown tool")

	invalid := h.run("create_order", `{"product_name":"mug","quantity":0}`)
	assert.False(t, invalid.Success)
	assert.Contains(t, invalid.Error, "quantity")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(invalid.JSON()), &decoded))
	assert.Equal(t, false, decoded["success"])
}
