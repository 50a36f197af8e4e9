package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyCode is the settlement currency.
const CurrencyCode = "SYP"

// MoneyFormatter renders amounts for user-facing messages.
type MoneyFormatter struct {
	printer *message.Printer
}

// NewMoneyFormatter builds a formatter for a BCP 47 locale; invalid tags fall back to English.
func NewMoneyFormatter(locale string) MoneyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return MoneyFormatter{printer: message.NewPrinter(tag)}
}

// Format renders d with grouping and up to two fraction digits, suffixed with the currency code.
func (f MoneyFormatter) Format(d decimal.Decimal) string {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return p.Sprintf("%v %s", number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(2)), CurrencyCode)
}

var defaultMoney = NewMoneyFormatter("en")

// FormatAmount formats d with the default English formatter.
func FormatAmount(d decimal.Decimal) string {
	return defaultMoney.Format(d)
}
