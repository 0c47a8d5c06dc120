package cart

import (
	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/internal/catalog"
	"github.com/haatbari/haatbari-backend/pkg/money"
)

// PricedLine joins a cart line's quantity with its live catalog pricing.
type PricedLine struct {
	ItemID   uuid.UUID
	Line     catalog.ResolvedLine
	Quantity int
}

// Totals is the computed money view of a cart. All amounts are paisa.
type Totals struct {
	SubtotalPaisa int64 `json:"subtotalPaisa"`
	DiscountPaisa int64 `json:"discountPaisa"`
	ShippingPaisa int64 `json:"shippingPaisa"`
	TaxPaisa      int64 `json:"taxPaisa"`
	TotalPaisa    int64 `json:"totalPaisa"`
	ItemCount     int   `json:"itemCount"`
}

// ShippingRule is the flat-fee estimate with a free-shipping threshold.
// FreeOverPaisa of zero disables the waiver.
type ShippingRule struct {
	FlatPaisa     int64
	FreeOverPaisa int64
}

// Estimate returns the shipping charge for the given subtotal.
func (r ShippingRule) Estimate(subtotal money.Money) money.Money {
	if r.FreeOverPaisa > 0 && subtotal.Amount >= r.FreeOverPaisa {
		return money.Paisa(0)
	}
	return money.Paisa(r.FlatPaisa)
}

// Subtotal sums the re-priced lines.
func Subtotal(lines []PricedLine) money.Money {
	subtotal := money.Paisa(0)
	for _, line := range lines {
		subtotal.Amount += money.Paisa(line.Line.UnitPricePaisa).MulQty(line.Quantity).Amount
	}
	return subtotal
}

// ComputeTotals derives a cart's money view from re-priced lines, an
// already-evaluated discount, and the shipping rule. It is pure: callers
// may invoke it any number of times without touching stock or cart state.
func ComputeTotals(lines []PricedLine, discount money.Money, rule ShippingRule) Totals {
	subtotal := Subtotal(lines)

	// Evaluation already clamps, but totals must never go negative even
	// if a caller passes a stale discount.
	discount = discount.ClampMax(subtotal)

	shipping := rule.Estimate(subtotal)

	itemCount := 0
	for _, line := range lines {
		itemCount += line.Quantity
	}

	return Totals{
		SubtotalPaisa: subtotal.Amount,
		DiscountPaisa: discount.Amount,
		ShippingPaisa: shipping.Amount,
		TaxPaisa:      0,
		TotalPaisa:    subtotal.Amount - discount.Amount + shipping.Amount,
		ItemCount:     itemCount,
	}
}
