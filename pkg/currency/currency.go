// Package currency formats monetary amounts for the configured locale.
package currency

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders decimal amounts with locale-aware digit grouping and a
// fixed two-digit fraction, prefixed with the ISO currency code.
type Formatter struct {
	printer *message.Printer
	code    string
}

// New builds a Formatter for the given BCP 47 locale tag and ISO 4217 code.
// Unknown locales fall back to English formatting.
func New(locale, code string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		code:    code,
	}
}

// Format renders "CODE 1,234.50" (separators per locale).
func (f *Formatter) Format(amount decimal.Decimal) string {
	v, _ := amount.Round(2).Float64()
	return f.printer.Sprintf("%s %v", f.code, number.Decimal(v, number.Scale(2)))
}

// Code returns the ISO currency code the formatter was built with.
func (f *Formatter) Code() string {
	return f.code
}
