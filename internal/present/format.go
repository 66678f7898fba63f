package present

import (
	"fmt"
	"strings"

	"github.com/hyperjump/boutique/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// PlaceholderImageURL is displayed when a product has no usable image.
	PlaceholderImageURL = "https://via.placeholder.com/300x300?text=No+Image"
	// NotAvailable marks a product without score or similarity.
	NotAvailable = "N/A"

	groupSep    = "\u202f" // narrow no-break space, as fr-FR groups thousands
	currencySep = "\u00a0"
)

var hundred = decimal.NewFromInt(100)

// FormatPrice renders an EUR amount the fr-FR way: "2 500,00 €".
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + groupThousands(intPart) + "," + frac + currencySep + "€"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(groupSep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatScore renders the product's score, or else its similarity, as a rounded
// percentage ("95%"). Products with neither get NotAvailable.
func FormatScore(p *models.ProductResult) string {
	v, ok := p.Relevance()
	if !ok {
		return NotAvailable
	}
	pct := decimal.NewFromFloat(v).Mul(hundred).Round(0)
	return fmt.Sprintf("%s%%", pct.String())
}

// ImageURL returns the product image, or the placeholder when there is none.
func ImageURL(p *models.ProductResult) string {
	if strings.TrimSpace(p.ImageURL) == "" {
		return PlaceholderImageURL
	}
	return p.ImageURL
}
