package domain

// PricingQuote is one normalized price breakdown for a specific stay length.
// Accommodation is mandatory; every other line item defaults to zero. At most
// one discount is present, tagged weekly or monthly by its label.
type PricingQuote struct {
	Nights             int      `json:"nights"`
	PriceNightly       float64  `json:"price_nightly"`
	PriceAccommodation float64  `json:"price_accommodation"`
	PriceCleaning      float64  `json:"price_cleaning"`
	Taxes              float64  `json:"taxes"`
	AirbnbFee          float64  `json:"airbnb_fee"`
	Total              float64  `json:"total"`
	TaxRate            float64  `json:"tax_rate"`
	Discount           float64  `json:"discount,omitempty"`
	DiscountWeekly     *float64 `json:"discount_weekly,omitempty"`
	DiscountMonthly    *float64 `json:"discount_monthly,omitempty"`
}

// PricingDoc is the compact pricing document stored per listing: nightly rate,
// cleaning fee and the best available weekly/monthly discount rates.
type PricingDoc struct {
	PriceNightly    float64  `json:"price_nightly"`
	PriceCleaning   float64  `json:"price_cleaning"`
	DiscountWeekly  *float64 `json:"discount_weekly,omitempty"`
	DiscountMonthly *float64 `json:"discount_monthly,omitempty"`
	NightsMin       int      `json:"nights_min,omitempty"`
	NightsMax       int      `json:"nights_max,omitempty"`
}

// TestLengths selects which stay lengths are worth a price probe given the
// listing's min/max-night constraints. Nightly, weekly and monthly rates can
// differ materially, so each allowed tier costs one extra round-trip:
//
//	min > 28          -> monthly only (min)
//	7 <= min <= 28    -> min, plus 28 when max allows a monthly stay
//	min < 7           -> min, plus 7 and/or 28 as max permits
func TestLengths(minNights, maxNights int) []int {
	switch {
	case minNights > 28:
		return []int{minNights}
	case minNights >= 7:
		if maxNights >= 28 && minNights < 28 {
			return []int{minNights, 28}
		}
		return []int{minNights}
	default:
		if maxNights >= 28 {
			return []int{minNights, 7, 28}
		}
		if maxNights >= 7 {
			return []int{minNights, 7}
		}
		return []int{minNights}
	}
}

// MonthlyTierLength is the stay length whose discount counts as "monthly":
// the tier closest to, but not exceeding, 28 nights — unless the listing's
// minimum already forces longer stays.
func MonthlyTierLength(minNights int) int {
	if minNights > 28 {
		return minNights
	}
	return 28
}

// CompactPricingDoc reduces per-tier quotes into the stored pricing document.
// Returns nil when no tier produced a quote.
func CompactPricingDoc(quotes map[int]*PricingQuote, minNights, maxNights int) *PricingDoc {
	// base rates come from the shortest probed tier
	var base *PricingQuote
	for nights, q := range quotes {
		if q == nil {
			continue
		}
		if base == nil || nights < base.Nights {
			base = q
		}
	}
	if base == nil {
		return nil
	}

	doc := &PricingDoc{
		PriceNightly:  base.PriceNightly,
		PriceCleaning: base.PriceCleaning,
		NightsMin:     minNights,
		NightsMax:     maxNights,
	}

	if weekly := quotes[7]; weekly != nil && weekly.DiscountWeekly != nil {
		doc.DiscountWeekly = weekly.DiscountWeekly
	}
	if monthly := quotes[MonthlyTierLength(minNights)]; monthly != nil && monthly.DiscountMonthly != nil {
		doc.DiscountMonthly = monthly.DiscountMonthly
	}

	return doc
}
