package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestCreateInvoiceRequest(t *testing.T) {
	var capturedURL, capturedAuth string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")

		var payload map[string]any
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if payload["amount"] != "25.50" {
			t.Fatalf("unexpected amount %v", payload["amount"])
		}
		if payload["sender_invoice_no"] != "order-1" {
			t.Fatalf("unexpected order id %v", payload["sender_invoice_no"])
		}
		return jsonResponse(http.StatusOK, `{"invoice_id":"inv-1","qr_text":"000201"}`), nil
	})

	client, err := NewClient("http://gateway.test/v2/", "tok", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	invoice, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		OrderID:     "order-1",
		Amount:      decimal.RequireFromString("25.5"),
		Description: "Order order-1",
		CallbackURL: "https://shop.test/api/webhooks/payments",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if capturedURL != "http://gateway.test/v2/invoice" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if invoice.InvoiceID != "inv-1" || invoice.QRPayload != "000201" {
		t.Fatalf("unexpected invoice %+v", invoice)
	}
}

func TestCreateInvoiceRejectsNonPositiveAmount(t *testing.T) {
	client, err := NewClient("http://gateway.test", "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "o", Amount: decimal.Zero})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckStatusParsesRows(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v2/payment/check/inv-9" {
			t.Fatalf("unexpected path %q", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"count":2,"rows":[
			{"payment_id":"p-1","payment_status":"FAILED","payment_amount":"10.00"},
			{"payment_id":"p-2","payment_status":"PAID","payment_amount":"10.00","payment_currency":"MNT"}
		]}`), nil
	})
	client, _ := NewClient("http://gateway.test/v2", "tok", WithHTTPClient(&http.Client{Transport: rt}))

	result, err := client.CheckStatus(context.Background(), "inv-9")
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	row, ok := result.PaidRow()
	if !ok || row.PaymentID != "p-2" {
		t.Fatalf("expected paid row p-2, got %+v ok=%v", row, ok)
	}
	if !row.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected amount %s", row.Amount)
	}
}

func TestStatusCodesMapToErrorCodes(t *testing.T) {
	cases := map[int]pkgerrors.Code{
		http.StatusBadRequest:          pkgerrors.CodeValidation,
		http.StatusTooManyRequests:     pkgerrors.CodeDependency,
		http.StatusBadGateway:          pkgerrors.CodeDependency,
		http.StatusInternalServerError: pkgerrors.CodeDependency,
	}
	for status, want := range cases {
		rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(status, `{"error":"nope"}`), nil
		})
		client, _ := NewClient("http://gateway.test", "tok", WithHTTPClient(&http.Client{Transport: rt}))
		_, err := client.CheckStatus(context.Background(), "inv-1")
		if got := pkgerrors.CodeOf(err); got != want {
			t.Fatalf("status %d: expected %s, got %s (%v)", status, want, got, err)
		}
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("http://gateway.test", " "); err == nil {
		t.Fatal("expected missing token error")
	}
}
