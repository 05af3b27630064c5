// Package currency presents canonical USD amounts in a display currency.
//
// Rates are static approximations supplied at construction. They are not
// refreshed from any market source.
package currency

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/kjannette/cryptodash/internal/format"
)

type Code string

const (
	USD Code = "usd"
	INR Code = "inr"
	BTC Code = "btc"
)

var Codes = []Code{USD, INR, BTC}

func ParseCode(s string) (Code, error) {
	switch c := Code(strings.ToLower(strings.TrimSpace(s))); c {
	case USD, INR, BTC:
		return c, nil
	case "":
		return USD, nil
	default:
		return "", fmt.Errorf("unsupported currency %q, expected usd|inr|btc", s)
	}
}

func (c Code) Symbol() string {
	switch c {
	case INR:
		return "₹"
	case BTC:
		return "₿"
	}
	return "$"
}

type Rates struct {
	INRPerUSD float64
	USDPerBTC float64
}

var DefaultRates = Rates{INRPerUSD: 83.5, USDPerBTC: 60000}

type Converter struct {
	inrPerUSD decimal.Decimal
	usdPerBTC decimal.Decimal
}

func NewConverter(r Rates) *Converter {
	if r.INRPerUSD <= 0 {
		r.INRPerUSD = DefaultRates.INRPerUSD
	}
	if r.USDPerBTC <= 0 {
		r.USDPerBTC = DefaultRates.USDPerBTC
	}
	return &Converter{
		inrPerUSD: decimal.NewFromFloat(r.INRPerUSD),
		usdPerBTC: decimal.NewFromFloat(r.USDPerBTC),
	}
}

// Convert returns usd expressed in the target currency.
func (c *Converter) Convert(usd decimal.Decimal, code Code) decimal.Decimal {
	switch code {
	case INR:
		return usd.Mul(c.inrPerUSD)
	case BTC:
		return usd.DivRound(c.usdPerBTC, 16)
	}
	return usd
}

// Format renders a USD amount in the chosen currency. NaN and infinities
// render as format.NotAvailable.
func (c *Converter) Format(usd float64, code Code) string {
	if math.IsNaN(usd) || math.IsInf(usd, 0) {
		return format.NotAvailable
	}
	amount := c.Convert(decimal.NewFromFloat(usd), code)

	if code == BTC {
		places := int32(6)
		if amount.Abs().LessThan(decimal.New(1, -3)) {
			places = 8
		}
		return BTC.Symbol() + amount.StringFixed(places)
	}

	decimals := 2
	if amount.Abs().LessThan(decimal.NewFromInt(1)) {
		decimals = 4
	}
	f, _ := amount.Float64()
	return format.Fiat(f, code.Symbol(), localeFor(code), decimals)
}

// FormatPtr is Format for optional values; nil renders as format.NotAvailable.
func (c *Converter) FormatPtr(usd *float64, code Code) string {
	if usd == nil {
		return format.NotAvailable
	}
	return c.Format(*usd, code)
}

func localeFor(code Code) language.Tag {
	if code == INR {
		return language.MustParse("en-IN")
	}
	return language.AmericanEnglish
}
