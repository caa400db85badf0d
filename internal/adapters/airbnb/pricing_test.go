package airbnb

import (
	"math"
	"testing"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

func item(typeName, title string, amount float64) priceItem {
	i := priceItem{Type: typeName, LocalizedTitle: title}
	i.Total.AmountMicros = int64(amount * micros)
	return i
}

func breakdownOf(total float64, items ...priceItem) priceBreakdown {
	var b priceBreakdown
	b.PriceItems = items
	b.Total.Total.AmountMicros = int64(total * micros)
	return b
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizePricing(t *testing.T) {
	breakdown := breakdownOf(820,
		item("ACCOMMODATION", "7 nights", 700),
		item("CLEANING_FEE", "Cleaning fee", 50),
		item("AIRBNB_GUEST_FEE", "Service fee", 30),
		item("TAXES", "Taxes", 40),
	)

	quote, err := normalizePricing(breakdown, 7)
	if err != nil {
		t.Fatalf("normalizePricing: %v", err)
	}
	if quote.Nights != 7 || !almostEqual(quote.PriceNightly, 100) {
		t.Errorf("nightly = %.2f over %d nights; want 100.00 over 7", quote.PriceNightly, quote.Nights)
	}
	if !almostEqual(quote.PriceCleaning, 50) || !almostEqual(quote.AirbnbFee, 30) || !almostEqual(quote.Taxes, 40) {
		t.Errorf("fees = %.2f/%.2f/%.2f; want 50/30/40", quote.PriceCleaning, quote.AirbnbFee, quote.Taxes)
	}
	if !almostEqual(quote.Total, 820) {
		t.Errorf("total = %.2f; want 820", quote.Total)
	}
	if !almostEqual(quote.TaxRate, 40.0/750.0) {
		t.Errorf("tax rate = %.6f; want %.6f", quote.TaxRate, 40.0/750.0)
	}
	if quote.DiscountWeekly != nil || quote.DiscountMonthly != nil {
		t.Error("no discount item was present; discount fields must stay nil")
	}
}

func TestNormalizePricingWeeklyDiscount(t *testing.T) {
	breakdown := breakdownOf(750,
		item("ACCOMMODATION", "7 nights", 700),
		item("CLEANING_FEE", "Cleaning fee", 50),
		item("TAXES", "Taxes", 68),
		item("DISCOUNT", "Weekly discount", -70),
	)

	quote, err := normalizePricing(breakdown, 7)
	if err != nil {
		t.Fatalf("normalizePricing: %v", err)
	}
	if !almostEqual(quote.Discount, 70) {
		t.Errorf("discount = %.2f; want 70 (sign flipped)", quote.Discount)
	}
	if quote.DiscountWeekly == nil || !almostEqual(*quote.DiscountWeekly, 0.1) {
		t.Errorf("DiscountWeekly = %v; want 0.1", quote.DiscountWeekly)
	}
	if quote.DiscountMonthly != nil {
		t.Error("DiscountMonthly must stay nil for a weekly discount")
	}
	// taxes over the discounted subtotal 700+50-70
	if !almostEqual(quote.TaxRate, 68.0/680.0) {
		t.Errorf("tax rate = %.6f; want %.6f", quote.TaxRate, 68.0/680.0)
	}
}

func TestNormalizePricingMonthlyDiscount(t *testing.T) {
	breakdown := breakdownOf(2100,
		item("ACCOMMODATION", "28 nights", 2800),
		item("DISCOUNT", "Monthly stay discount", -700),
	)

	quote, err := normalizePricing(breakdown, 28)
	if err != nil {
		t.Fatalf("normalizePricing: %v", err)
	}
	if quote.DiscountMonthly == nil || !almostEqual(*quote.DiscountMonthly, 0.25) {
		t.Errorf("DiscountMonthly = %v; want 0.25", quote.DiscountMonthly)
	}
}

func TestNormalizePricingRejectsUnknownDiscountTitle(t *testing.T) {
	breakdown := breakdownOf(900,
		item("ACCOMMODATION", "7 nights", 1000),
		item("DISCOUNT", "Early bird discount", -100),
	)
	_, err := normalizePricing(breakdown, 7)
	if !domain.IsDataShape(err) {
		t.Fatalf("err = %v; want data-shape error", err)
	}
}

func TestNormalizePricingRejectsDuplicateType(t *testing.T) {
	breakdown := breakdownOf(300,
		item("ACCOMMODATION", "nights", 200),
		item("TAXES", "Taxes", 50),
		item("TAXES", "More taxes", 50),
	)
	_, err := normalizePricing(breakdown, 2)
	if !domain.IsDataShape(err) {
		t.Fatalf("err = %v; want data-shape error", err)
	}
}

func TestNormalizePricingRequiresAccommodation(t *testing.T) {
	breakdown := breakdownOf(50, item("CLEANING_FEE", "Cleaning fee", 50))
	_, err := normalizePricing(breakdown, 2)
	if !domain.IsDataShape(err) {
		t.Fatalf("err = %v; want data-shape error", err)
	}
}

func TestNormalizePricingRejectsExtraItems(t *testing.T) {
	breakdown := breakdownOf(600,
		item("ACCOMMODATION", "n", 100),
		item("CLEANING_FEE", "n", 100),
		item("AIRBNB_GUEST_FEE", "n", 100),
		item("TAXES", "n", 100),
		item("DISCOUNT", "Weekly discount", -100),
		item("PET_FEE", "n", 100),
	)
	_, err := normalizePricing(breakdown, 2)
	if !domain.IsDataShape(err) {
		t.Fatalf("err = %v; want data-shape error", err)
	}
}
