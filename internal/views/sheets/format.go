// Package sheets renders printable HTML documents for the workshop: the
// recipe sheet and the production ticket. Values are rounded only here,
// never in storage.
package sheets

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money renders a currency amount with two decimals.
func Money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// UnitPrice renders a per-gram price, which needs more precision than Money.
func UnitPrice(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(4) + "/g"
}

// Grams renders a weight in grams with two decimals.
func Grams(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + " g"
}

// Percent renders a composition share with two decimals.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// Date renders the supplied time using a production-friendly layout.
func Date(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.Format("02 Jan 2006")
}
