package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProfitScenario(t *testing.T) {
	got := Profit(d("9.00"), 3, d("5.00"), d("2"), d("1"), decimal.Zero)
	require.True(t, got.Equal(d("9.00")), "got %s", got)
}

func TestProfitRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		qty      int
		cost     string
		fees     string
		expected string
	}{
		{"half up", "1.005", 1, "0", "0", "1.01"},
		{"below half", "1.004", 1, "0", "0", "1.00"},
		{"loss half", "0", 1, "1.005", "0", "-1.01"},
		{"fees", "19.99", 2, "7.333", "0.01", "25.30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Profit(d(tc.price), tc.qty, d(tc.cost), decimal.Zero, decimal.Zero, d(tc.fees))
			require.True(t, got.Equal(d(tc.expected)), "got %s want %s", got, tc.expected)
		})
	}
}

func TestProfitMatchesFormulaForNonNegativeInputs(t *testing.T) {
	prices := []string{"0", "0.01", "3.33", "12.5", "999.99"}
	costs := []string{"0", "1.10", "4.445", "100"}
	for _, p := range prices {
		for _, c := range costs {
			for qty := 1; qty <= 4; qty++ {
				want := d(p).Mul(decimal.NewFromInt(int64(qty))).
					Sub(d(c).Mul(decimal.NewFromInt(int64(qty))).Add(d("1.25")).Add(d("0.40")).Add(d("0.05"))).
					Round(2)
				got := Profit(d(p), qty, d(c), d("1.25"), d("0.40"), d("0.05"))
				require.True(t, got.Equal(want), "price=%s cost=%s qty=%d got %s want %s", p, c, qty, got, want)
			}
		}
	}
}

func TestMargin(t *testing.T) {
	require.True(t, Margin(d("9"), d("27")).Equal(d("33.33")))
	require.True(t, Margin(d("5"), decimal.Zero).IsZero())
	require.True(t, Margin(d("-3"), d("12")).Equal(d("-25")))
}
