package domain

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount the way it is sent to the gateway:
// a plain decimal string with exactly two fraction digits. Result
// comparison uses the same rendering, so full payment detection is an
// exact string match rather than a floating tolerance.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// AmountsEqual compares a gateway presentation amount against an order
// amount using the request-side formatting rule.
func AmountsEqual(presentation string, amount decimal.Decimal) bool {
	return presentation == FormatAmount(amount)
}
