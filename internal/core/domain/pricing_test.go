package domain

import (
	"reflect"
	"testing"
)

func TestTestLengths(t *testing.T) {
	tests := []struct {
		minNights int
		maxNights int
		want      []int
	}{
		{1, 365, []int{1, 7, 28}},
		{2, 10, []int{2, 7}},
		{3, 5, []int{3}},
		{7, 365, []int{7, 28}},
		{14, 21, []int{14}},
		{28, 365, []int{28}},
		{30, 365, []int{30}},
		{90, 365, []int{90}},
	}

	for _, tt := range tests {
		got := TestLengths(tt.minNights, tt.maxNights)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("TestLengths(%d, %d) = %v; want %v", tt.minNights, tt.maxNights, got, tt.want)
		}
	}
}

func TestMonthlyTierLength(t *testing.T) {
	tests := []struct {
		minNights int
		want      int
	}{
		{1, 28},
		{28, 28},
		{29, 29},
		{45, 45},
	}
	for _, tt := range tests {
		if got := MonthlyTierLength(tt.minNights); got != tt.want {
			t.Errorf("MonthlyTierLength(%d) = %d; want %d", tt.minNights, got, tt.want)
		}
	}
}

func TestCompactPricingDoc(t *testing.T) {
	weekly := 0.1
	monthly := 0.25
	quotes := map[int]*PricingQuote{
		2: {Nights: 2, PriceNightly: 100, PriceCleaning: 40},
		7: {Nights: 7, PriceNightly: 95, PriceCleaning: 40, DiscountWeekly: &weekly},
		28: {
			Nights: 28, PriceNightly: 80, PriceCleaning: 40,
			DiscountMonthly: &monthly,
		},
	}

	doc := CompactPricingDoc(quotes, 2, 365)
	if doc == nil {
		t.Fatal("CompactPricingDoc returned nil")
	}
	if doc.PriceNightly != 100 || doc.PriceCleaning != 40 {
		t.Errorf("base rates = %.2f/%.2f; want from shortest tier 100.00/40.00", doc.PriceNightly, doc.PriceCleaning)
	}
	if doc.DiscountWeekly == nil || *doc.DiscountWeekly != weekly {
		t.Errorf("DiscountWeekly = %v; want %v", doc.DiscountWeekly, weekly)
	}
	if doc.DiscountMonthly == nil || *doc.DiscountMonthly != monthly {
		t.Errorf("DiscountMonthly = %v; want %v", doc.DiscountMonthly, monthly)
	}
	if doc.NightsMin != 2 || doc.NightsMax != 365 {
		t.Errorf("nights = %d/%d; want 2/365", doc.NightsMin, doc.NightsMax)
	}
}

func TestCompactPricingDocLongMinimum(t *testing.T) {
	monthly := 0.3
	quotes := map[int]*PricingQuote{
		45: {Nights: 45, PriceNightly: 70, DiscountMonthly: &monthly},
	}
	doc := CompactPricingDoc(quotes, 45, 365)
	if doc == nil {
		t.Fatal("CompactPricingDoc returned nil")
	}
	if doc.DiscountMonthly == nil || *doc.DiscountMonthly != monthly {
		t.Errorf("DiscountMonthly = %v; want %v (tier equals the 45-night minimum)", doc.DiscountMonthly, monthly)
	}
}

func TestCompactPricingDocEmpty(t *testing.T) {
	if doc := CompactPricingDoc(nil, 1, 365); doc != nil {
		t.Errorf("CompactPricingDoc(nil) = %+v; want nil", doc)
	}
	if doc := CompactPricingDoc(map[int]*PricingQuote{7: nil}, 1, 365); doc != nil {
		t.Errorf("CompactPricingDoc(all-nil quotes) = %+v; want nil", doc)
	}
}
