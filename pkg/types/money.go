package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yDkay/payment-system/pkg/enums"
)

// FormatAmount renders integer minor units as a human readable major-unit
// string, honoring the currency's minor-unit exponent.
func FormatAmount(amount int64, currency enums.Currency) string {
	exp := currency.MinorUnitExponent()
	major := decimal.New(amount, -exp)
	return major.StringFixed(exp)
}

// DisplayAmount renders "25.99 USD" style strings for receipts and snapshots.
func DisplayAmount(amount int64, currency enums.Currency) string {
	return fmt.Sprintf("%s %s", FormatAmount(amount, currency), currency)
}
