package enums

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:    false,
		OrderStatusConfirmed:  false,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s terminal=%v want %v", status, got, want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("shipped")
	if err != nil || got != OrderStatusShipped {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("settled is not a payment status")
	}
	if got, err := ParsePaymentStatus("paid"); err != nil || !got.IsValid() {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
}

func TestParseNormalisesInput(t *testing.T) {
	got, err := ParseChatRole("  Assistant ")
	if err != nil || got != ChatRoleAssistant {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParsePaymentMethod("card"); err == nil {
		t.Fatal("card is not a payment method")
	}
	if !PaymentMethodCash.IsValid() || PaymentMethod("").IsValid() {
		t.Fatal("unexpected payment method validity")
	}
}
