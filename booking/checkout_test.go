package booking

import (
	"strings"
	"testing"

	"cinema-booking-cli/model"
)

func TestCheckout_Validate(t *testing.T) {
	cases := []struct {
		name    string
		payer   model.PayerInfo
		method  model.PaymentMethod
		wantErr string
	}{
		{name: "valid", payer: model.PayerInfo{Name: "An", Phone: "0901 234-567"}, method: model.PaymentMomo},
		{name: "valid with email", payer: model.PayerInfo{Name: "An", Phone: "+84901234567", Email: "an@example.com"}, method: model.PaymentCard},
		{name: "missing name", payer: model.PayerInfo{Phone: "0901234567"}, method: model.PaymentCash, wantErr: "name is required"},
		{name: "missing phone", payer: model.PayerInfo{Name: "An"}, method: model.PaymentCash, wantErr: "phone is required"},
		{name: "short phone", payer: model.PayerInfo{Name: "An", Phone: "12345"}, method: model.PaymentCash, wantErr: "phone must be 8 to 15 digits"},
		{name: "bad email", payer: model.PayerInfo{Name: "An", Phone: "0901234567", Email: "not-an-email"}, method: model.PaymentCash, wantErr: "email is not valid"},
		{name: "no method", payer: model.PayerInfo{Name: "An", Phone: "0901234567"}, wantErr: "choose a payment method"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := Checkout{}.
				UpdatePayerInfo(tc.payer.Name, tc.payer.Phone, tc.payer.Email).
				UpdatePaymentMethod(tc.method)
			err := checkout.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !IsKind(err, KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q in %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestCheckout_UpdatesAreLocalValues(t *testing.T) {
	base := Checkout{Method: model.PaymentCash}
	next := base.UpdatePayerInfo("  An  ", "0901.234.567", " an@example.com ").UpdatePaymentMethod("vnpay")

	if base.Payer.Name != "" {
		t.Fatal("expected receiver to stay unchanged")
	}
	if next.Payer.Name != "An" || next.Payer.Phone != "0901234567" || next.Payer.Email != "an@example.com" {
		t.Fatalf("unexpected payer: %+v", next.Payer)
	}
	if next.Method != model.PaymentVNPay {
		t.Fatalf("expected VNPAY, got %s", next.Method)
	}
}

func TestValidator_PhoneRuleRegistered(t *testing.T) {
	if err := validate.Var("+84901234567", "phone"); err != nil {
		t.Fatalf("expected valid phone, got %v", err)
	}
	if err := validate.Var("12ab", "phone"); err == nil {
		t.Fatal("expected invalid phone to fail")
	}
}

func TestNewCheckout_DefaultsToCash(t *testing.T) {
	if got := NewCheckout(); got.Method != model.PaymentCash || got.Payer != (model.PayerInfo{}) {
		t.Fatalf("unexpected default checkout: %+v", got)
	}
}
