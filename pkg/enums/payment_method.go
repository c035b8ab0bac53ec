package enums

// PaymentMethod describes how a customer settles an order.
type PaymentMethod string

const (
	PaymentMethodQR   PaymentMethod = "qr"
	PaymentMethodCash PaymentMethod = "cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodQR,
	PaymentMethodCash,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return isKnown(validPaymentMethods, p)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", validPaymentMethods, value)
}
