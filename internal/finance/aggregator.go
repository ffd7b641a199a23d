// Package finance derives buyer balances and item profitability from the
// sale and payment ledgers. Nothing here writes to the store.
package finance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
)

type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// BuyerFinancials sums everything sold to the buyer and everything the buyer
// paid or deposited. Refunded sales stay in the purchased total; the refund
// record is descriptive and does not settle the balance.
func (a *Aggregator) BuyerFinancials(ctx context.Context, r store.Reader, ownerID string, buyerID string) (domain.BuyerFinancials, error) {
	buyer, err := r.GetBuyer(ctx, ownerID, buyerID)
	if err != nil {
		return domain.BuyerFinancials{}, fmt.Errorf("load buyer %s: %w", buyerID, err)
	}
	sales, err := r.ListSalesByBuyer(ctx, ownerID, buyerID)
	if err != nil {
		return domain.BuyerFinancials{}, fmt.Errorf("list sales of buyer %s: %w", buyerID, err)
	}
	payments, err := r.ListPaymentsByBuyer(ctx, ownerID, buyerID)
	if err != nil {
		return domain.BuyerFinancials{}, fmt.Errorf("list payments of buyer %s: %w", buyerID, err)
	}

	purchased := decimal.Zero
	for _, sale := range sales {
		purchased = purchased.Add(sale.SaleTotal())
	}

	paid, deposited := decimal.Zero, decimal.Zero
	for _, p := range payments {
		switch p.Kind {
		case domain.PaymentKindDeposit:
			deposited = deposited.Add(p.Amount)
		default:
			paid = paid.Add(p.Amount)
		}
	}

	totalPaid := paid.Add(deposited)
	return domain.BuyerFinancials{
		BuyerID:        buyer.ID,
		SaleCount:      len(sales),
		TotalPurchased: money.Round2(purchased),
		TotalPayments:  money.Round2(paid),
		TotalDeposits:  money.Round2(deposited),
		TotalPaid:      money.Round2(totalPaid),
		TotalCredit:    money.Round2(buyer.Credit),
		TotalDiscount:  money.Round2(buyer.Discounts),
		Balance:        money.Round2(purchased.Sub(totalPaid).Sub(buyer.Credit).Sub(buyer.Discounts)),
	}, nil
}

// ItemProfitSummary aggregates every sale of an item. Profit is the sum of
// the profit cached on each sale, so later cost edits never move it.
func (a *Aggregator) ItemProfitSummary(ctx context.Context, r store.Reader, ownerID string, itemID string) (domain.ItemProfitSummary, error) {
	if _, err := r.GetItem(ctx, ownerID, itemID); err != nil {
		return domain.ItemProfitSummary{}, fmt.Errorf("load item %s: %w", itemID, err)
	}
	sales, err := r.ListSalesByItem(ctx, ownerID, itemID)
	if err != nil {
		return domain.ItemProfitSummary{}, fmt.Errorf("list sales of item %s: %w", itemID, err)
	}

	summary := domain.ItemProfitSummary{ItemID: itemID}
	totalSales, totalProfit := decimal.Zero, decimal.Zero
	for _, sale := range sales {
		summary.SoldQty += sale.Quantity
		totalSales = totalSales.Add(sale.SaleTotal())
		totalProfit = totalProfit.Add(sale.Profit)
	}
	summary.TotalSales = money.Round2(totalSales)
	summary.TotalProfit = money.Round2(totalProfit)
	summary.ProfitMargin = money.Margin(totalProfit, totalSales)
	return summary, nil
}
