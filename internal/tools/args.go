package tools

import (
	"strings"
)

// Name identifies a catalog tool.
type Name string

const (
	ToolCreateOrder         Name = "create_order"
	ToolAddToCart           Name = "add_to_cart"
	ToolRemoveFromCart      Name = "remove_from_cart"
	ToolViewCart            Name = "view_cart"
	ToolCheckout            Name = "checkout"
	ToolCollectContactInfo  Name = "collect_contact_info"
	ToolRequestHumanSupport Name = "request_human_support"
	ToolRememberPreference  Name = "remember_preference"
	ToolCancelOrder         Name = "cancel_order"
	ToolShowProductImage    Name = "show_product_image"
	ToolListProducts        Name = "list_products"
	ToolCheckOrderStatus    Name = "check_order_status"
	ToolCheckPaymentStatus  Name = "check_payment_status"
)

// Call is a validated, normalised tool invocation. The concrete type names
// the tool; handlers switch on it.
type Call interface {
	Tool() Name
}

// normalizer trims and canonicalises decoded arguments before validation.
type normalizer interface {
	normalize()
}

// checker reports cross-field violations the struct tags cannot express.
type checker interface {
	check() []FieldViolation
}

type CreateOrderArgs struct {
	ProductName string  `json:"product_name" validate:"required,max=200"`
	Quantity    int     `json:"quantity" validate:"required,min=1,max=100"`
	Variant     *string `json:"variant" validate:"omitempty,max=100"`
}

func (CreateOrderArgs) Tool() Name { return ToolCreateOrder }

func (a *CreateOrderArgs) normalize() {
	a.ProductName = strings.TrimSpace(a.ProductName)
	a.Variant = trimOptional(a.Variant)
}

type AddToCartArgs struct {
	ProductName string  `json:"product_name" validate:"required,max=200"`
	Quantity    int     `json:"quantity" validate:"required,min=1,max=100"`
	Variant     *string `json:"variant" validate:"omitempty,max=100"`
}

func (AddToCartArgs) Tool() Name { return ToolAddToCart }

func (a *AddToCartArgs) normalize() {
	a.ProductName = strings.TrimSpace(a.ProductName)
	a.Variant = trimOptional(a.Variant)
}

// RemoveFromCartArgs removes the whole line when Quantity is omitted.
type RemoveFromCartArgs struct {
	ProductName string  `json:"product_name" validate:"required,max=200"`
	Quantity    *int    `json:"quantity" validate:"omitempty,min=1,max=100"`
	Variant     *string `json:"variant" validate:"omitempty,max=100"`
}

func (RemoveFromCartArgs) Tool() Name { return ToolRemoveFromCart }

func (a *RemoveFromCartArgs) normalize() {
	a.ProductName = strings.TrimSpace(a.ProductName)
	a.Variant = trimOptional(a.Variant)
}

type ViewCartArgs struct{}

func (ViewCartArgs) Tool() Name { return ToolViewCart }

type CheckoutArgs struct{}

func (CheckoutArgs) Tool() Name { return ToolCheckout }

type CollectContactInfoArgs struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone   *string `json:"phone" validate:"omitempty,min=6,max=20,phone"`
	Address *string `json:"address" validate:"omitempty,min=3,max=300"`
}

func (CollectContactInfoArgs) Tool() Name { return ToolCollectContactInfo }

func (a *CollectContactInfoArgs) normalize() {
	a.Name = trimOptional(a.Name)
	a.Address = trimOptional(a.Address)
	if a.Phone != nil {
		phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(*a.Phone)
		a.Phone = trimOptional(&phone)
	}
}

func (a *CollectContactInfoArgs) check() []FieldViolation {
	if a.Name == nil && a.Phone == nil && a.Address == nil {
		return []FieldViolation{{Field: "name", Reason: "at least one of name, phone or address is required"}}
	}
	return nil
}

type RequestHumanSupportArgs struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

func (RequestHumanSupportArgs) Tool() Name { return ToolRequestHumanSupport }

func (a *RequestHumanSupportArgs) normalize() {
	a.Reason = trimOptional(a.Reason)
}

type RememberPreferenceArgs struct {
	Key   string `json:"key" validate:"required,max=64"`
	Value string `json:"value" validate:"required,max=500"`
}

func (RememberPreferenceArgs) Tool() Name { return ToolRememberPreference }

func (a *RememberPreferenceArgs) normalize() {
	a.Key = strings.ToLower(strings.Join(strings.Fields(a.Key), "_"))
	a.Value = strings.TrimSpace(a.Value)
}

// CancelOrderArgs targets the customer's latest open order when OrderID is omitted.
type CancelOrderArgs struct {
	OrderID *string `json:"order_id" validate:"omitempty,uuid"`
	Reason  *string `json:"reason" validate:"omitempty,max=500"`
}

func (CancelOrderArgs) Tool() Name { return ToolCancelOrder }

func (a *CancelOrderArgs) normalize() {
	a.OrderID = trimOptional(a.OrderID)
	a.Reason = trimOptional(a.Reason)
}

const (
	ImageModeSingle = "single"
	ImageModeAll    = "all"
)

// ShowProductImageArgs returns the image of the first name that matches a
// product in single mode and one image per matched name in all mode.
type ShowProductImageArgs struct {
	Names []string `json:"names" validate:"required,min=1,max=10,dive,required,max=200"`
	Mode  string   `json:"mode" validate:"oneof=single all"`
}

func (ShowProductImageArgs) Tool() Name { return ToolShowProductImage }

func (a *ShowProductImageArgs) normalize() {
	names := make([]string, 0, len(a.Names))
	for _, n := range a.Names {
		names = append(names, strings.TrimSpace(n))
	}
	a.Names = names
	a.Mode = strings.ToLower(strings.TrimSpace(a.Mode))
	if a.Mode == "" {
		a.Mode = ImageModeAll
	}
}

type ListProductsArgs struct {
	Query *string `json:"query" validate:"omitempty,max=200"`
	Limit *int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

func (ListProductsArgs) Tool() Name { return ToolListProducts }

func (a *ListProductsArgs) normalize() {
	a.Query = trimOptional(a.Query)
}

type CheckOrderStatusArgs struct {
	OrderID *string `json:"order_id" validate:"omitempty,uuid"`
}

func (CheckOrderStatusArgs) Tool() Name { return ToolCheckOrderStatus }

func (a *CheckOrderStatusArgs) normalize() {
	a.OrderID = trimOptional(a.OrderID)
}

type CheckPaymentStatusArgs struct {
	OrderID *string `json:"order_id" validate:"omitempty,uuid"`
}

func (CheckPaymentStatusArgs) Tool() Name { return ToolCheckPaymentStatus }

func (a *CheckPaymentStatusArgs) normalize() {
	a.OrderID = trimOptional(a.OrderID)
}

// trimOptional trims v and collapses blank strings to nil.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
