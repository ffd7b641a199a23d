package finance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
)

const owner = "owner-1"

var (
	dec = decimal.RequireFromString
	at  = time.Date(2026, time.May, 2, 9, 0, 0, 0, time.UTC)
)

func seed(t *testing.T, fn func(ctx context.Context, tx store.Tx) error) *memory.Store {
	t.Helper()
	repo := memory.New()
	require.NoError(t, repo.WithTransaction(context.Background(), fn))
	return repo
}

func sale(id, itemID, buyerID string, qty int, price, profit string) domain.SaleRecord {
	return domain.SaleRecord{
		ID:             id,
		OwnerID:        owner,
		ItemID:         itemID,
		BuyerID:        buyerID,
		ItemName:       "Puppy",
		Quantity:       qty,
		UnitSalePrice:  dec(price),
		Profit:         dec(profit),
		SequenceNumber: len(id),
		Period:         domain.PeriodOf(at),
		SaleDate:       at,
	}
}

func TestBuyerBalance(t *testing.T) {
	repo := seed(t, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertBuyer(ctx, domain.Buyer{ID: "buyer-1", OwnerID: owner, Name: "Ana", Credit: dec("100")}); err != nil {
			return err
		}
		if err := tx.InsertSale(ctx, sale("sale-1", "", "buyer-1", 1, "1500", "0")); err != nil {
			return err
		}
		for _, p := range []domain.PaymentRecord{
			{ID: "pay-1", OwnerID: owner, Kind: domain.PaymentKindDeposit, BuyerID: "buyer-1", Amount: dec("300")},
			{ID: "pay-2", OwnerID: owner, Kind: domain.PaymentKindPayment, BuyerID: "buyer-1", Amount: dec("200")},
		} {
			if err := tx.InsertPayment(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})

	var got domain.BuyerFinancials
	require.NoError(t, repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		got, err = NewAggregator().BuyerFinancials(ctx, r, owner, "buyer-1")
		return err
	}))

	require.True(t, got.TotalPurchased.Equal(dec("1500")))
	require.True(t, got.TotalDeposits.Equal(dec("300")))
	require.True(t, got.TotalPayments.Equal(dec("200")))
	require.True(t, got.TotalPaid.Equal(dec("500")))
	require.True(t, got.TotalCredit.Equal(dec("100")))
	require.True(t, got.Balance.Equal(dec("900")), "balance %s", got.Balance)
	require.Equal(t, 1, got.SaleCount)
}

func TestBuyerWithoutSales(t *testing.T) {
	repo := seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBuyer(ctx, domain.Buyer{ID: "buyer-2", OwnerID: owner, Name: "Ben"})
	})

	var got domain.BuyerFinancials
	require.NoError(t, repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		got, err = NewAggregator().BuyerFinancials(ctx, r, owner, "buyer-2")
		return err
	}))
	require.True(t, got.Balance.IsZero())
	require.Equal(t, 0, got.SaleCount)
}

func TestBuyerOfAnotherOwner(t *testing.T) {
	repo := seed(t, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBuyer(ctx, domain.Buyer{ID: "buyer-3", OwnerID: "owner-2", Name: "Cy"})
	})

	err := repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		_, err := NewAggregator().BuyerFinancials(ctx, r, owner, "buyer-3")
		return err
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestItemProfitSummary(t *testing.T) {
	repo := seed(t, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertItem(ctx, domain.InventoryItem{ID: "item-1", OwnerID: owner, Name: "Widget", Quantity: 4, PurchasedQty: 10}); err != nil {
			return err
		}
		if err := tx.InsertItem(ctx, domain.InventoryItem{ID: "item-2", OwnerID: owner, Name: "Idle", Quantity: 1, PurchasedQty: 1}); err != nil {
			return err
		}
		if err := tx.InsertSale(ctx, sale("sale-a", "item-1", "", 3, "9.00", "9.00")); err != nil {
			return err
		}
		return tx.InsertSale(ctx, sale("sale-bb", "item-1", "", 3, "4.00", "-3.00"))
	})

	agg := NewAggregator()
	var busy, idle domain.ItemProfitSummary
	require.NoError(t, repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		if busy, err = agg.ItemProfitSummary(ctx, r, owner, "item-1"); err != nil {
			return err
		}
		idle, err = agg.ItemProfitSummary(ctx, r, owner, "item-2")
		return err
	}))

	require.Equal(t, 6, busy.SoldQty)
	require.True(t, busy.TotalSales.Equal(dec("39")))
	require.True(t, busy.TotalProfit.Equal(dec("6")))
	require.True(t, busy.ProfitMargin.Equal(dec("15.38")), "margin %s", busy.ProfitMargin)

	require.Equal(t, 0, idle.SoldQty)
	require.True(t, idle.ProfitMargin.IsZero())
}
