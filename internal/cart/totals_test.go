package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/internal/catalog"
	"github.com/haatbari/haatbari-backend/pkg/money"
)

func pricedLine(unitPaisa int64, qty int) PricedLine {
	return PricedLine{
		ItemID:   uuid.New(),
		Line:     catalog.ResolvedLine{ProductID: uuid.New(), UnitPricePaisa: unitPaisa},
		Quantity: qty,
	}
}

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	lines := []PricedLine{pricedLine(1000, 2)}
	totals := ComputeTotals(lines, money.Paisa(200), ShippingRule{})

	if totals.SubtotalPaisa != 2000 {
		t.Fatalf("subtotal: got %d", totals.SubtotalPaisa)
	}
	if totals.DiscountPaisa != 200 {
		t.Fatalf("discount: got %d", totals.DiscountPaisa)
	}
	if totals.ShippingPaisa != 0 || totals.TaxPaisa != 0 {
		t.Fatalf("unexpected charges: %+v", totals)
	}
	if totals.TotalPaisa != 1800 {
		t.Fatalf("total: got %d", totals.TotalPaisa)
	}
	if totals.ItemCount != 2 {
		t.Fatalf("item count: got %d", totals.ItemCount)
	}
}

func TestComputeTotalsClampsStaleDiscount(t *testing.T) {
	t.Parallel()

	lines := []PricedLine{pricedLine(500, 1)}
	totals := ComputeTotals(lines, money.Paisa(10000), ShippingRule{})

	if totals.DiscountPaisa != 500 {
		t.Fatalf("expected discount clamped to subtotal, got %d", totals.DiscountPaisa)
	}
	if totals.TotalPaisa != 0 {
		t.Fatalf("expected zero total, got %d", totals.TotalPaisa)
	}
}

func TestShippingRuleThreshold(t *testing.T) {
	t.Parallel()

	rule := ShippingRule{FlatPaisa: 6000, FreeOverPaisa: 200000}

	if got := rule.Estimate(money.Paisa(150000)); got.Amount != 6000 {
		t.Fatalf("below threshold: got %d", got.Amount)
	}
	if got := rule.Estimate(money.Paisa(200000)); got.Amount != 0 {
		t.Fatalf("at threshold: got %d", got.Amount)
	}

	uncapped := ShippingRule{FlatPaisa: 6000}
	if got := uncapped.Estimate(money.Paisa(10000000)); got.Amount != 6000 {
		t.Fatalf("waiver disabled: got %d", got.Amount)
	}
}
