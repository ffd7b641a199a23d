package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
)

const owner = "owner-1"

var (
	fixedNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	dec      = decimal.RequireFromString
)

type fixture struct {
	repo     *memory.Store
	recorder *Recorder
	itemID   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	inv := ledger.NewInventory(ledger.NewAuditTrail(clock), clock)
	f := fixture{
		repo:     memory.New(),
		recorder: NewRecorder(NewAllocator(), inv, NewPropagator(clock), clock),
		itemID:   "item-upc-123",
	}
	err := f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertItem(ctx, domain.InventoryItem{
			ID:           f.itemID,
			OwnerID:      owner,
			UPC:          "123",
			Name:         "Widget",
			Quantity:     10,
			UnitCost:     dec("5.00"),
			PurchasedQty: 10,
			CreatedAt:    fixedNow,
			UpdatedAt:    fixedNow,
		}); err != nil {
			return err
		}
		return tx.InsertBuyer(ctx, domain.Buyer{ID: "buyer-1", OwnerID: owner, SequenceNumber: 1, Name: "Ana", CreatedAt: fixedNow})
	})
	require.NoError(t, err)
	return f
}

func (f fixture) record(t *testing.T, draft domain.SaleDraft) (domain.SaleRecord, error) {
	t.Helper()
	var sale domain.SaleRecord
	err := f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		sale, err = f.recorder.Record(ctx, tx, owner, draft)
		return err
	})
	return sale, err
}

func (f fixture) item(t *testing.T) domain.InventoryItem {
	t.Helper()
	var item *domain.InventoryItem
	require.NoError(t, f.repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		item, err = r.GetItem(ctx, owner, f.itemID)
		return err
	}))
	return *item
}

func widgetDraft(qty int) domain.SaleDraft {
	price := dec("9.00")
	date := time.Date(2026, time.March, 3, 15, 0, 0, 0, time.UTC)
	return domain.SaleDraft{
		ItemID:        "item-upc-123",
		Quantity:      qty,
		UnitSalePrice: &price,
		Shipping:      dec("2"),
		Commission:    dec("1"),
		SaleDate:      &date,
		Channel:       "market",
	}
}

func TestRecordLinkedSale(t *testing.T) {
	f := newFixture(t)

	sale, err := f.record(t, widgetDraft(3))
	require.NoError(t, err)
	require.True(t, sale.Profit.Equal(dec("9.00")), "profit %s", sale.Profit)
	require.True(t, sale.UnitCostSnapshot.Equal(dec("5.00")))
	require.Equal(t, 1, sale.SequenceNumber)
	require.Equal(t, domain.Period{Year: 2026, Month: time.March}, sale.Period)
	require.Equal(t, "Widget", sale.ItemName)
	require.Equal(t, 7, f.item(t).Quantity)

	var history []domain.HistoryEntry
	require.NoError(t, f.repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		history, err = r.ListHistory(ctx, owner, f.itemID, 0)
		return err
	}))
	require.Len(t, history, 1)
	require.Equal(t, -3, history[0].Delta)
	require.Equal(t, domain.HistorySale, history[0].Type)
	require.Equal(t, sale.ID, history[0].SaleID)
}

func TestRecordIgnoresCallerCostForLinkedItem(t *testing.T) {
	f := newFixture(t)
	draft := widgetDraft(1)
	cost := dec("1.00")
	draft.UnitCost = &cost

	_, err := f.record(t, draft)
	require.True(t, domain.IsValidationError(err), "err = %v", err)
	require.Equal(t, 10, f.item(t).Quantity)
}

func TestRecordUnlinkedSaleUsesExplicitCost(t *testing.T) {
	f := newFixture(t)
	price := dec("250")
	cost := dec("40")
	date := fixedNow
	sale, err := f.record(t, domain.SaleDraft{
		BuyerID:       "buyer-1",
		ItemName:      "Stud service",
		Quantity:      1,
		UnitSalePrice: &price,
		UnitCost:      &cost,
		SaleDate:      &date,
	})
	require.NoError(t, err)
	require.True(t, sale.Profit.Equal(dec("210")))
	require.Equal(t, "buyer-1", sale.BuyerID)
	require.Equal(t, 10, f.item(t).Quantity)
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)
	negative := dec("-1")

	_, err := f.record(t, domain.SaleDraft{ItemID: f.itemID, UnitSalePrice: &negative, Shipping: dec("-2")})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "required", ve.Fields["quantity"])
	require.Equal(t, "required", ve.Fields["sale_date"])
	require.Equal(t, "gte=0", ve.Fields["unit_sale_price"])
	require.Equal(t, "gte=0", ve.Fields["shipping"])
	require.Equal(t, 10, f.item(t).Quantity)
}

func TestShortfallRollsBackEverything(t *testing.T) {
	f := newFixture(t)

	_, err := f.record(t, widgetDraft(11))
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.Equal(t, 10, f.item(t).Quantity)

	sale, err := f.record(t, widgetDraft(2))
	require.NoError(t, err)
	require.Equal(t, 1, sale.SequenceNumber, "failed sale must not spend a number")
}

func TestSequencePerPeriod(t *testing.T) {
	f := newFixture(t)

	for want := 1; want <= 3; want++ {
		sale, err := f.record(t, widgetDraft(1))
		require.NoError(t, err)
		require.Equal(t, want, sale.SequenceNumber)
	}

	april := widgetDraft(1)
	date := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	april.SaleDate = &date
	april.Channel = "online"
	sale, err := f.record(t, april)
	require.NoError(t, err)
	require.Equal(t, 1, sale.SequenceNumber)
}

func TestRefundPropagation(t *testing.T) {
	f := newFixture(t)
	draft := widgetDraft(2)
	draft.IsRefund = true
	draft.BuyerID = "buyer-1"

	sale, err := f.record(t, draft)
	require.NoError(t, err)
	require.True(t, sale.Profit.Equal(dec("5.00")), "profit is not reversed")
	require.Equal(t, 8, f.item(t).Quantity, "refund does not restock")

	var refund *domain.RefundRecord
	require.NoError(t, f.repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		refund, err = r.GetRefundBySale(ctx, owner, sale.ID)
		return err
	}))
	require.Equal(t, "Widget", refund.ItemName)
	require.Equal(t, "buyer-1", refund.BuyerID)
	require.True(t, refund.SaleAmount.Equal(dec("18")))
	require.True(t, refund.PurchaseAmount.Equal(dec("10")))
	require.True(t, refund.ShippingAmount.Equal(dec("2")))
	require.Equal(t, sale.SaleDate, refund.OriginalSaleDate)
	require.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), refund.DateRefunded)

	err = f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := f.recorder.propagator.Propagate(ctx, tx, sale)
		return err
	})
	require.ErrorIs(t, err, ErrAlreadyRefunded)
}

func TestCorrectRecomputesProfitFromSnapshot(t *testing.T) {
	f := newFixture(t)
	sale, err := f.record(t, widgetDraft(3))
	require.NoError(t, err)

	// A later cost edit must not leak into the corrected sale.
	item := f.item(t)
	item.UnitCost = dec("8.00")
	require.NoError(t, f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateItemDetails(ctx, item)
	}))

	price := dec("10.00")
	qty := 4
	refunded := true
	var corrected domain.SaleRecord
	err = f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		corrected, err = f.recorder.Correct(ctx, tx, owner, sale.ID, domain.SaleCorrection{
			Quantity:      &qty,
			UnitSalePrice: &price,
			IsRefund:      &refunded,
		})
		return err
	})
	require.NoError(t, err)
	// 40 - (5*4 + 2 + 1)
	require.True(t, corrected.Profit.Equal(dec("17.00")), "profit %s", corrected.Profit)
	require.Equal(t, sale.SequenceNumber, corrected.SequenceNumber)
	require.Equal(t, 7, f.item(t).Quantity, "correction must not decrement again")

	var refunds []domain.RefundRecord
	require.NoError(t, f.repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		refunds, err = r.ListRefunds(ctx, owner, 0)
		return err
	}))
	require.Len(t, refunds, 1)

	notRefunded := false
	err = f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := f.recorder.Correct(ctx, tx, owner, sale.ID, domain.SaleCorrection{IsRefund: &notRefunded})
		return err
	})
	require.True(t, domain.IsValidationError(err))
}

func TestCorrectRejectsPeriodChange(t *testing.T) {
	f := newFixture(t)
	sale, err := f.record(t, widgetDraft(1))
	require.NoError(t, err)

	moved := time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)
	err = f.repo.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := f.recorder.Correct(ctx, tx, owner, sale.ID, domain.SaleCorrection{SaleDate: &moved})
		return err
	})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "same_period", ve.Fields["sale_date"])
}

func TestRecordUnknownBuyer(t *testing.T) {
	f := newFixture(t)
	draft := widgetDraft(1)
	draft.BuyerID = "buyer-missing"

	_, err := f.record(t, draft)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, 10, f.item(t).Quantity)
}
