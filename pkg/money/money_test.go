package money

import (
	"testing"

	"github.com/haatbari/haatbari-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

func TestPercentFloorsToSmallestUnit(t *testing.T) {
	t.Parallel()

	// 10% of 999 paisa is 99.9 paisa; the discount floors to 99.
	got := Paisa(999).Percent(decimal.NewFromInt(10))
	if got.Amount != 99 {
		t.Fatalf("Percent = %d, want 99", got.Amount)
	}

	// 10% of 2000 is exact.
	if got := Paisa(2000).Percent(decimal.NewFromInt(10)); got.Amount != 200 {
		t.Fatalf("Percent = %d, want 200", got.Amount)
	}
}

func TestClampMax(t *testing.T) {
	t.Parallel()

	if got := Paisa(500).ClampMax(Paisa(300)); got.Amount != 300 {
		t.Fatalf("ClampMax = %d, want 300", got.Amount)
	}
	if got := Paisa(200).ClampMax(Paisa(300)); got.Amount != 200 {
		t.Fatalf("ClampMax = %d, want 200", got.Amount)
	}
}

func TestAddRejectsCurrencyMismatch(t *testing.T) {
	t.Parallel()

	if _, err := Paisa(100).Add(Cents(100)); err == nil {
		t.Fatal("expected currency mismatch error")
	}
}

func TestRateConvert(t *testing.T) {
	t.Parallel()

	rate, err := ParseRate("110", enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("ParseRate: %v", err)
	}

	// 1100 BDT = 110000 paisa → 10 USD = 1000 cents.
	got, err := rate.Convert(Paisa(110000))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.Amount != 1000 || got.Currency != enums.CurrencyUSD {
		t.Fatalf("Convert = %+v", got)
	}

	// Rounds to the nearest cent.
	got, err = rate.Convert(Paisa(100))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.Amount != 1 {
		t.Fatalf("Convert(100 paisa) = %d cents, want 1", got.Amount)
	}
}

func TestRateConvertRejectsNonBDT(t *testing.T) {
	t.Parallel()

	rate, _ := ParseRate("110", enums.CurrencyUSD)
	if _, err := rate.Convert(Cents(100)); err == nil {
		t.Fatal("expected error for non-BDT source")
	}
}

func TestParseRateRejectsZero(t *testing.T) {
	t.Parallel()

	if _, err := ParseRate("0", enums.CurrencyUSD); err == nil {
		t.Fatal("expected error for zero rate")
	}
	if _, err := ParseRate("abc", enums.CurrencyUSD); err == nil {
		t.Fatal("expected error for garbage rate")
	}
}
