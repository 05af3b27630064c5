// Package format turns numbers into display strings for the dashboard.
// Every function here is pure.
package format

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const NotAvailable = "N/A"

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// Fiat renders amount with locale digit grouping, a currency symbol and a
// fixed number of fractional digits. The sign goes before the symbol.
func Fiat(amount float64, symbol string, tag language.Tag, decimals int) string {
	if !Finite(amount) {
		return NotAvailable
	}
	p := usPrinter
	if tag != language.AmericanEnglish {
		p = message.NewPrinter(tag)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + symbol + p.Sprintf(fmt.Sprintf("%%.%df", decimals), amount)
}

// Currency formats a USD value with two decimals, e.g. "$1,234.50".
func Currency(value float64) string {
	return Fiat(value, "$", language.AmericanEnglish, 2)
}

// LargeNumber abbreviates market-cap sized values: $1.23T, $4.56B, $7.89M, $1.00K.
func LargeNumber(value float64) string {
	if !Finite(value) {
		return NotAvailable
	}
	switch {
	case value >= 1e12:
		return fmt.Sprintf("$%.2fT", value/1e12)
	case value >= 1e9:
		return fmt.Sprintf("$%.2fB", value/1e9)
	case value >= 1e6:
		return fmt.Sprintf("$%.2fM", value/1e6)
	case value >= 1e3:
		return fmt.Sprintf("$%.2fK", value/1e3)
	}
	return fmt.Sprintf("$%.2f", value)
}

func Percent(value float64) string {
	if !Finite(value) {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f%%", value)
}

// PriceTooltip is the ungrouped chart tooltip form, "$1234.50".
func PriceTooltip(value float64) string {
	if !Finite(value) {
		return NotAvailable
	}
	return fmt.Sprintf("$%.2f", value)
}

// Date formats a chart axis label for a point at ts (ms since epoch). The
// layout depends on how many days the chart spans.
func Date(ts int64, rangeDays int) string {
	return DateIn(ts, rangeDays, time.Local)
}

func DateIn(ts int64, rangeDays int, loc *time.Location) string {
	t := time.UnixMilli(ts).In(loc)
	switch {
	case rangeDays <= 1:
		return t.Format("03:04 PM")
	case rangeDays <= 30:
		return t.Format("Jan 2")
	}
	return t.Format("Jan 06")
}

func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
