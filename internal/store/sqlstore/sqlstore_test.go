package sqlstore_test

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/service"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/sqlstore"
)

var dec = decimal.RequireFromString

func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newService(repo store.Store) *service.Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return service.New(repo, "owner-sql", service.Options{Logger: logger, RetryBackoff: time.Millisecond})
}

func admin() context.Context {
	return service.WithActor(context.Background(), domain.Actor{UserID: "owner-sql", Role: domain.RoleAdmin})
}

func ptr[T any](v T) *T {
	return &v
}

func march(day int) *time.Time {
	return ptr(time.Date(2026, time.March, day, 11, 0, 0, 0, time.UTC))
}

func TestSaleLifecycleOnSQLite(t *testing.T) {
	repo := openSQLite(t)
	svc := newService(repo)
	ctx := admin()

	item, err := svc.CreateItem(ctx, domain.ItemDraft{UPC: "123", Name: "Widget", Quantity: 10, UnitCost: ptr(dec("5.00"))})
	require.NoError(t, err)

	sale, err := svc.RecordSale(ctx, domain.SaleDraft{
		ItemID:        item.ID,
		Quantity:      3,
		UnitSalePrice: ptr(dec("9.00")),
		Shipping:      dec("2"),
		Commission:    dec("1"),
		SaleDate:      march(3),
	})
	require.NoError(t, err)
	require.True(t, sale.Profit.Equal(dec("9")))
	require.Equal(t, 1, sale.SequenceNumber)

	stored, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, stored.Profit.Equal(dec("9.00")))
	require.True(t, stored.UnitCostSnapshot.Equal(dec("5.00")))
	require.Equal(t, sale.Period, stored.Period)
	require.True(t, stored.SaleDate.Equal(*march(3)))
	require.Equal(t, item.ID, stored.ItemID)
	require.Empty(t, stored.BuyerID)

	_, err = svc.WriteOffInventory(ctx, domain.WriteOffRequest{ItemID: item.ID, Qty: 2, Reason: "Damaged"})
	require.NoError(t, err)

	_, err = svc.WriteOffInventory(ctx, domain.WriteOffRequest{ItemID: item.ID, Qty: 10, Reason: "Lost"})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 5, current.Quantity)

	history, err := svc.ListItemHistory(ctx, item.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.HistoryWriteOff, history[0].Type)
	require.Equal(t, -2, history[0].Delta)
	require.Equal(t, domain.HistorySale, history[1].Type)
	require.Equal(t, sale.ID, history[1].SaleID)

	report, err := svc.ReconcileInventory(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Items)
	require.Empty(t, report.Drifts)
}

func TestBuyerFinancialsOnSQLite(t *testing.T) {
	svc := newService(openSQLite(t))
	ctx := admin()

	buyer, err := svc.CreateBuyer(ctx, domain.BuyerDraft{Name: "Ana", Credit: dec("100")})
	require.NoError(t, err)

	sale, err := svc.RecordSale(ctx, domain.SaleDraft{
		BuyerID:       buyer.ID,
		ItemName:      "Litter pick",
		Quantity:      1,
		UnitSalePrice: ptr(dec("1500")),
		SaleDate:      march(9),
		IsRefund:      true,
	})
	require.NoError(t, err)

	_, err = svc.RecordDeposit(ctx, domain.DepositDraft{BuyerID: buyer.ID, Amount: ptr(dec("300"))})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, domain.PaymentDraft{BuyerID: buyer.ID, LinkedSaleID: sale.ID, Amount: ptr(dec("200"))})
	require.NoError(t, err)

	got, err := svc.GetBuyerFinancials(ctx, buyer.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(dec("900")), "balance %s", got.Balance)

	refunds, err := svc.ListRefunds(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	require.Equal(t, buyer.ID, refunds[0].BuyerID)
	require.True(t, refunds[0].SaleAmount.Equal(dec("1500")))
}

func TestConcurrentSalesOnSQLite(t *testing.T) {
	svc := newService(openSQLite(t))
	ctx := admin()

	item, err := svc.CreateItem(ctx, domain.ItemDraft{Name: "Widget", Quantity: 50, UnitCost: ptr(dec("1"))})
	require.NoError(t, err)

	const workers = 12
	numbers := make([]int, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			sale, err := svc.RecordSale(ctx, domain.SaleDraft{
				ItemID:        item.ID,
				Quantity:      1,
				UnitSalePrice: ptr(dec("2")),
				SaleDate:      march(20),
			})
			if err != nil {
				return err
			}
			numbers[i] = sale.SequenceNumber
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Ints(numbers)
	for i, n := range numbers {
		require.Equal(t, i+1, n)
	}

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 50-workers, current.Quantity)
}

func TestRolledBackUnitLeavesNothing(t *testing.T) {
	repo := openSQLite(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		seq, err := tx.NextSequence(ctx, "owner-sql", "sale:2026-03")
		require.NoError(t, err)
		require.Equal(t, 1, seq)
		return store.ErrNotFound
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = repo.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		seq, err := tx.NextSequence(ctx, "owner-sql", "sale:2026-03")
		require.NoError(t, err)
		require.Equal(t, 1, seq)
		return nil
	})
	require.NoError(t, err)
}

func TestDuplicateSaleNumberIsConflict(t *testing.T) {
	repo := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	sale := func(id string) domain.SaleRecord {
		return domain.SaleRecord{
			ID:             id,
			OwnerID:        "owner-sql",
			ItemName:       "Service",
			Quantity:       1,
			UnitSalePrice:  dec("1"),
			SequenceNumber: 1,
			Period:         domain.PeriodOf(at),
			SaleDate:       at,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
	}

	require.NoError(t, repo.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertSale(ctx, sale("sale-a"))
	}))
	err := repo.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertSale(ctx, sale("sale-b"))
	})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestOwnerScopedReads(t *testing.T) {
	repo := openSQLite(t)
	svc := newService(repo)

	item, err := svc.CreateItem(admin(), domain.ItemDraft{Name: "Widget", Quantity: 1, UnitCost: ptr(dec("1"))})
	require.NoError(t, err)

	err = repo.View(context.Background(), func(ctx context.Context, r store.Reader) error {
		_, err := r.GetItem(ctx, "someone-else", item.ID)
		return err
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}
