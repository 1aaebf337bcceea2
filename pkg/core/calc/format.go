package calc

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "$"

// FormatCurrency renders v as "$1,234.56" or "-$1,234.56".
func FormatCurrency(v float64) string {
	v = finite(v)
	p := message.NewPrinter(language.English)
	if v < 0 {
		return p.Sprintf("-%s%.2f", CurrencySymbol, math.Abs(v))
	}
	return p.Sprintf("%s%.2f", CurrencySymbol, v)
}

// FormatPercent renders a value already expressed in percent units, e.g. 3.84 -> "3.8%".
func FormatPercent(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.1f%%", finite(v))
}

// FormatChange renders a signed change with a direction arrow. The arrow
// points up for favorable movement and down otherwise; zero renders "→".
func FormatChange(f Field, change float64) string {
	change = finite(change)
	p := message.NewPrinter(language.English)
	amount := p.Sprintf("%.2f", change)
	if change > 0 {
		amount = "+" + amount
	}
	switch {
	case change == 0:
		return "→ " + amount
	case IsFavorable(f, change):
		return "↑ " + amount
	default:
		return "↓ " + amount
	}
}
