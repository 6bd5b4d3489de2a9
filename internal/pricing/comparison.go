package pricing

import (
	"BuyBuddy/internal/api"
	"BuyBuddy/internal/session"
)

// BuildComparison derives a comparison over products whose normalized price
// is strictly positive. It returns nil when no product qualifies. The best
// deal is the first product holding the minimum price in input order, and
// TotalCompared counts only the qualifying products.
func BuildComparison(products []session.Product) *session.PriceComparison {
	var pc *session.PriceComparison

	for _, p := range products {
		price := Value(p.Price)
		if price <= 0 {
			continue
		}

		if pc == nil {
			pc = &session.PriceComparison{
				BestDeal:   session.Deal{Name: p.Name, Price: price, Platform: p.Platform},
				PriceRange: session.PriceRange{Min: price, Max: price},
			}
		}
		pc.TotalCompared++

		if price < pc.BestDeal.Price {
			pc.BestDeal = session.Deal{Name: p.Name, Price: price, Platform: p.Platform}
		}
		if price < pc.PriceRange.Min {
			pc.PriceRange.Min = price
		}
		if price > pc.PriceRange.Max {
			pc.PriceRange.Max = price
		}
	}

	return pc
}

// ReconcileComparison prefers the comparison the backend supplied, with its
// prices normalized. When none was supplied, or the supplied one does not
// hold Min <= BestDeal <= Max with at least one product compared, the
// comparison is derived from products instead.
func ReconcileComparison(supplied *api.PriceComparison, products []session.Product) *session.PriceComparison {
	if pc := fromSupplied(supplied); pc.Valid() {
		return pc
	}
	return BuildComparison(products)
}

func fromSupplied(supplied *api.PriceComparison) *session.PriceComparison {
	if supplied == nil || supplied.BestDeal == nil || supplied.PriceRange == nil {
		return nil
	}

	return &session.PriceComparison{
		BestDeal: session.Deal{
			Name:     supplied.BestDeal.Name,
			Price:    Value(supplied.BestDeal.Price),
			Platform: supplied.BestDeal.Platform,
		},
		PriceRange: session.PriceRange{
			Min: Value(supplied.PriceRange.Min),
			Max: Value(supplied.PriceRange.Max),
		},
		TotalCompared: supplied.TotalCompared,
	}
}

// Savings is the spread between the most and least expensive offer, and that
// spread as a percentage of the highest price.
func Savings(pc *session.PriceComparison) (amount float64, percent float64) {
	if pc == nil || pc.PriceRange.Max <= 0 {
		return 0, 0
	}
	amount = pc.PriceRange.Max - pc.PriceRange.Min
	return amount, amount / pc.PriceRange.Max * 100
}
