package types

import (
	"testing"

	"github.com/yDkay/payment-system/pkg/enums"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		currency enums.Currency
		want     string
	}{
		{2599, enums.CurrencyUSD, "25.99"},
		{100, enums.CurrencyEUR, "1.00"},
		{5, enums.CurrencyGBP, "0.05"},
		{2599, enums.CurrencyJPY, "2599"},
		{0, enums.CurrencyUSD, "0.00"},
	}
	for _, tc := range tests {
		if got := FormatAmount(tc.amount, tc.currency); got != tc.want {
			t.Errorf("FormatAmount(%d, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestDisplayAmount(t *testing.T) {
	if got := DisplayAmount(2599, enums.CurrencyUSD); got != "25.99 USD" {
		t.Fatalf("DisplayAmount = %q", got)
	}
}
