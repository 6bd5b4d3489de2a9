package pricing

import (
	"encoding/json"
	"testing"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(name string, price session.RawPrice, platform string) session.Product {
	return session.Product{Name: name, Price: price, Platform: platform}
}

func TestBuildComparison(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, BuildComparison(nil))
		assert.Nil(t, BuildComparison([]session.Product{}))
	})

	t.Run("all unpriced", func(t *testing.T) {
		products := []session.Product{
			product("a", session.NumberPrice(0), "x"),
			product("b", session.TextPrice("sur devis"), "y"),
			product("c", session.RawPrice{}, "z"),
		}
		assert.Nil(t, BuildComparison(products))
	})

	t.Run("picks minimum and range", func(t *testing.T) {
		products := []session.Product{
			product("ten", session.NumberPrice(10), "amazon"),
			product("five", session.NumberPrice(5), "fnac"),
			product("twenty", session.NumberPrice(20), "cdiscount"),
		}
		pc := BuildComparison(products)
		require.NotNil(t, pc)
		assert.Equal(t, session.Deal{Name: "five", Price: 5, Platform: "fnac"}, pc.BestDeal)
		assert.Equal(t, session.PriceRange{Min: 5, Max: 20}, pc.PriceRange)
		assert.Equal(t, 3, pc.TotalCompared)
		assert.True(t, pc.Valid())
	})

	t.Run("tie keeps first occurrence", func(t *testing.T) {
		products := []session.Product{
			product("first", session.NumberPrice(5), "a"),
			product("second", session.NumberPrice(5), "b"),
		}
		pc := BuildComparison(products)
		require.NotNil(t, pc)
		assert.Equal(t, "first", pc.BestDeal.Name)
	})

	t.Run("counts only priced products", func(t *testing.T) {
		products := []session.Product{
			product("free", session.NumberPrice(0), "a"),
			product("text", session.TextPrice("1 299,00 €"), "b"),
			product("broken", session.TextPrice("???"), "c"),
			product("number", session.NumberPrice(999), "d"),
		}
		pc := BuildComparison(products)
		require.NotNil(t, pc)
		assert.Equal(t, 2, pc.TotalCompared)
		assert.Equal(t, "number", pc.BestDeal.Name)
		assert.Equal(t, session.PriceRange{Min: 999, Max: 1299}, pc.PriceRange)
	})

	t.Run("does not modify input", func(t *testing.T) {
		products := []session.Product{product("a", session.TextPrice("12,00 €"), "x")}
		BuildComparison(products)
		assert.Equal(t, "12,00 €", products[0].Price.String())
	})
}

func TestReconcileComparison(t *testing.T) {
	products := []session.Product{
		product("iPhone 15 Pro", session.NumberPrice(749.99), "fnac"),
		product("iPhone 15 Pro", session.NumberPrice(699.00), "amazon"),
	}

	decode := func(t *testing.T, raw string) *api.PriceComparison {
		t.Helper()
		var pc api.PriceComparison
		require.NoError(t, json.Unmarshal([]byte(raw), &pc))
		return &pc
	}

	t.Run("nil supplied falls back", func(t *testing.T) {
		pc := ReconcileComparison(nil, products)
		require.NotNil(t, pc)
		assert.Equal(t, 699.0, pc.BestDeal.Price)
		assert.Equal(t, "amazon", pc.BestDeal.Platform)
		assert.Equal(t, 2, pc.TotalCompared)
	})

	t.Run("valid supplied is normalized and kept", func(t *testing.T) {
		supplied := decode(t, `{
			"best_deal": {"name": "Backend pick", "price": "699,00 €", "platform": "amazon"},
			"price_range": {"min": "699,00 €", "max": 749.99},
			"total_compared": 2
		}`)
		pc := ReconcileComparison(supplied, products)
		require.NotNil(t, pc)
		assert.Equal(t, "Backend pick", pc.BestDeal.Name)
		assert.Equal(t, 699.0, pc.BestDeal.Price)
		assert.Equal(t, session.PriceRange{Min: 699, Max: 749.99}, pc.PriceRange)
	})

	t.Run("inconsistent supplied is rebuilt", func(t *testing.T) {
		supplied := decode(t, `{
			"best_deal": {"name": "Wrong", "price": 10, "platform": "x"},
			"price_range": {"min": 699, "max": 749.99},
			"total_compared": 2
		}`)
		pc := ReconcileComparison(supplied, products)
		require.NotNil(t, pc)
		assert.Equal(t, "iPhone 15 Pro", pc.BestDeal.Name)
		assert.Equal(t, 699.0, pc.BestDeal.Price)
	})

	t.Run("partial supplied is rebuilt", func(t *testing.T) {
		supplied := decode(t, `{"total_compared": 2}`)
		pc := ReconcileComparison(supplied, products)
		require.NotNil(t, pc)
		assert.Equal(t, 749.99, pc.PriceRange.Max)
	})

	t.Run("nothing usable", func(t *testing.T) {
		assert.Nil(t, ReconcileComparison(nil, nil))
	})
}

func TestSavings(t *testing.T) {
	amount, percent := Savings(&session.PriceComparison{PriceRange: session.PriceRange{Min: 50, Max: 200}})
	assert.Equal(t, 150.0, amount)
	assert.Equal(t, 75.0, percent)

	amount, percent = Savings(nil)
	assert.Zero(t, amount)
	assert.Zero(t, percent)
}
