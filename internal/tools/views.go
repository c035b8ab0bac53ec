package tools

import (
	"time"

	"github.com/angelmondragon/shopchat-core/internal/cart"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
)

type lineView struct {
	Product   string  `json:"product"`
	Variant   *string `json:"variant,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice string  `json:"unit_price"`
	LineTotal string  `json:"line_total"`
}

type paymentView struct {
	InvoiceID string     `json:"invoice_id"`
	Status    string     `json:"status"`
	Amount    string     `json:"amount"`
	QRPayload *string    `json:"qr_payload,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type orderView struct {
	OrderID   string       `json:"order_id"`
	Status    string       `json:"status"`
	Total     string       `json:"total"`
	Items     []lineView   `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
	Payment   *paymentView `json:"payment,omitempty"`
}

type cartView struct {
	Items []lineView `json:"items"`
	Total string     `json:"total"`
}

func newOrderView(order *models.Order, payment *models.Payment) orderView {
	view := orderView{
		OrderID:   order.ID.String(),
		Status:    order.Status.String(),
		Total:     order.TotalAmount.StringFixed(2),
		Items:     make([]lineView, 0, len(order.Items)),
		CreatedAt: order.CreatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, lineView{
			Product:   item.ProductName,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}
	if payment == nil && len(order.Payments) > 0 {
		payment = &order.Payments[len(order.Payments)-1]
	}
	if payment != nil {
		view.Payment = newPaymentView(payment)
	}
	return view
}

func newPaymentView(p *models.Payment) *paymentView {
	return &paymentView{
		InvoiceID: p.InvoiceID,
		Status:    string(p.Status),
		Amount:    p.Amount.StringFixed(2),
		QRPayload: p.QRPayload,
		ExpiresAt: p.ExpiresAt,
		PaidAt:    p.PaidAt,
	}
}

func newCartView(c *models.Cart) cartView {
	view := cartView{Items: make([]lineView, 0, len(c.Items)), Total: cart.Total(c).StringFixed(2)}
	for _, item := range c.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		view.Items = append(view.Items, lineView{
			Product:   name,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}
	return view
}

func shortID(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}
	return "#" + id
}
