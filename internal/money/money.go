// Package money holds the currency arithmetic shared by the sale recorder and
// the financial aggregator. All amounts are shopspring decimals; rounding is
// two places, half away from zero.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Line returns unit × qty.
func Line(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Profit is round2(price×qty − (cost×qty + shipping + commission + fees)).
func Profit(unitPrice decimal.Decimal, qty int, unitCost decimal.Decimal, shipping decimal.Decimal, commission decimal.Decimal, otherFees decimal.Decimal) decimal.Decimal {
	revenue := Line(unitPrice, qty)
	expenses := Line(unitCost, qty).Add(shipping).Add(commission).Add(otherFees)
	return Round2(revenue.Sub(expenses))
}

// Margin returns profit/sales×100 rounded to two places, or zero when there
// were no sales.
func Margin(profit decimal.Decimal, sales decimal.Decimal) decimal.Decimal {
	if !sales.IsPositive() {
		return decimal.Zero
	}
	return Round2(profit.Div(sales).Mul(hundred))
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
