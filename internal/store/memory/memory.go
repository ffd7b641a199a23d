package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
)

// Store keeps the whole ledger in process memory. A unit of work runs under
// the write lock against a staged copy of the state, which replaces the
// committed state only when the unit succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	items       map[string]domain.InventoryItem
	history     []domain.HistoryEntry
	sales       map[string]domain.SaleRecord
	saleNumbers map[string]string
	counters    map[string]int
	refunds     []domain.RefundRecord
	buyers      map[string]domain.Buyer
	payments    []domain.PaymentRecord
}

func New() *Store {
	return &Store{state: &state{
		items:       make(map[string]domain.InventoryItem),
		history:     make([]domain.HistoryEntry, 0, 128),
		sales:       make(map[string]domain.SaleRecord),
		saleNumbers: make(map[string]string),
		counters:    make(map[string]int),
		refunds:     make([]domain.RefundRecord, 0, 16),
		buyers:      make(map[string]domain.Buyer),
		payments:    make([]domain.PaymentRecord, 0, 32),
	}}
}

// NewSeeded returns a store with a few demo items for ownerID, used when the
// server runs without a database.
func NewSeeded(ownerID string) *Store {
	s := New()
	now := time.Now().UTC()
	for i, seed := range []struct {
		sku  string
		upc  string
		name string
		qty  int
		cost string
		msrp string
	}{
		{"FEED-5KG", "0840012300011", "Puppy Feed 5kg", 40, "18.50", "32.00"},
		{"LEASH-STD", "0840012300028", "Nylon Leash", 25, "3.20", "9.99"},
		{"VAX-KIT", "0840012300035", "Vaccination Kit", 12, "21.00", "45.00"},
		{"CRATE-M", "0840012300042", "Travel Crate M", 6, "38.75", "79.00"},
	} {
		id := fmt.Sprintf("item-seed-%02d", i+1)
		s.state.items[id] = domain.InventoryItem{
			ID:           id,
			OwnerID:      ownerID,
			SKU:          seed.sku,
			UPC:          seed.upc,
			Name:         seed.name,
			Quantity:     seed.qty,
			UnitCost:     decimal.RequireFromString(seed.cost),
			MSRP:         decimal.RequireFromString(seed.msrp),
			PurchasedQty: seed.qty,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return s
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(ctx, &txn{st: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r store.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &txn{st: s.state})
}

func (s *Store) Close() error {
	return nil
}

func (st *state) clone() *state {
	return &state{
		items:       maps.Clone(st.items),
		history:     slices.Clip(st.history),
		sales:       maps.Clone(st.sales),
		saleNumbers: maps.Clone(st.saleNumbers),
		counters:    maps.Clone(st.counters),
		refunds:     slices.Clip(st.refunds),
		buyers:      maps.Clone(st.buyers),
		payments:    slices.Clip(st.payments),
	}
}

// txn serves both View (read-only use) and WithTransaction.
type txn struct {
	st *state
}

func (t *txn) GetItem(_ context.Context, ownerID string, id string) (*domain.InventoryItem, error) {
	item, ok := t.st.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (t *txn) GetItemForUpdate(ctx context.Context, ownerID string, id string) (*domain.InventoryItem, error) {
	return t.GetItem(ctx, ownerID, id)
}

func (t *txn) ListItems(_ context.Context, ownerID string) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, len(t.st.items))
	for _, item := range t.st.items {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return items, nil
}

func (t *txn) InsertItem(_ context.Context, item domain.InventoryItem) error {
	if item.ID == "" || item.OwnerID == "" || item.Quantity < 0 {
		return fmt.Errorf("insert item: invalid item")
	}
	if _, exists := t.st.items[item.ID]; exists {
		return fmt.Errorf("insert item %s: %w", item.ID, store.ErrConflict)
	}
	t.st.items[item.ID] = item
	return nil
}

func (t *txn) UpdateItemQuantity(_ context.Context, ownerID string, id string, qty int, at time.Time) error {
	item, ok := t.st.items[id]
	if !ok || item.OwnerID != ownerID {
		return store.ErrNotFound
	}
	if qty < 0 {
		return fmt.Errorf("update item %s: negative quantity %d", id, qty)
	}
	item.Quantity = qty
	item.UpdatedAt = at
	t.st.items[id] = item
	return nil
}

func (t *txn) UpdateItemDetails(_ context.Context, item domain.InventoryItem) error {
	current, ok := t.st.items[item.ID]
	if !ok || current.OwnerID != item.OwnerID {
		return store.ErrNotFound
	}
	item.Quantity = current.Quantity
	item.PurchasedQty = current.PurchasedQty
	item.CreatedAt = current.CreatedAt
	t.st.items[item.ID] = item
	return nil
}

func (t *txn) InsertHistory(_ context.Context, entry domain.HistoryEntry) error {
	t.st.history = append(t.st.history, entry)
	return nil
}

func (t *txn) ListHistory(_ context.Context, ownerID string, itemID string, limit int) ([]domain.HistoryEntry, error) {
	out := make([]domain.HistoryEntry, 0, 16)
	for i := len(t.st.history) - 1; i >= 0; i-- {
		entry := t.st.history[i]
		if entry.OwnerID != ownerID || entry.ItemID != itemID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *txn) SumHistoryDelta(_ context.Context, ownerID string, itemID string) (int, error) {
	total := 0
	for _, entry := range t.st.history {
		if entry.OwnerID == ownerID && entry.ItemID == itemID {
			total += entry.Delta
		}
	}
	return total, nil
}

func (t *txn) NextSequence(_ context.Context, ownerID string, scope string) (int, error) {
	key := ownerID + "::" + scope
	t.st.counters[key]++
	return t.st.counters[key], nil
}

func (t *txn) GetSale(_ context.Context, ownerID string, id string) (*domain.SaleRecord, error) {
	sale, ok := t.st.sales[id]
	if !ok || sale.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (t *txn) ListSalesByPeriod(_ context.Context, ownerID string, period domain.Period) ([]domain.SaleRecord, error) {
	sales := t.filterSales(func(s domain.SaleRecord) bool {
		return s.OwnerID == ownerID && s.Period == period
	})
	slices.SortFunc(sales, func(a, b domain.SaleRecord) int {
		return a.SequenceNumber - b.SequenceNumber
	})
	return sales, nil
}

func (t *txn) ListSalesByItem(_ context.Context, ownerID string, itemID string) ([]domain.SaleRecord, error) {
	sales := t.filterSales(func(s domain.SaleRecord) bool {
		return s.OwnerID == ownerID && s.ItemID == itemID
	})
	slices.SortFunc(sales, compareSaleDate)
	return sales, nil
}

func (t *txn) ListSalesByBuyer(_ context.Context, ownerID string, buyerID string) ([]domain.SaleRecord, error) {
	sales := t.filterSales(func(s domain.SaleRecord) bool {
		return s.OwnerID == ownerID && s.BuyerID == buyerID
	})
	slices.SortFunc(sales, compareSaleDate)
	return sales, nil
}

func (t *txn) filterSales(keep func(domain.SaleRecord) bool) []domain.SaleRecord {
	out := make([]domain.SaleRecord, 0, 16)
	for _, sale := range t.st.sales {
		if keep(sale) {
			out = append(out, sale)
		}
	}
	return out
}

func (t *txn) InsertSale(_ context.Context, sale domain.SaleRecord) error {
	if _, exists := t.st.sales[sale.ID]; exists {
		return fmt.Errorf("insert sale %s: %w", sale.ID, store.ErrConflict)
	}
	numberKey := saleNumberKey(sale)
	if _, taken := t.st.saleNumbers[numberKey]; taken {
		return fmt.Errorf("sale number %s: %w", numberKey, store.ErrConflict)
	}
	t.st.sales[sale.ID] = sale
	t.st.saleNumbers[numberKey] = sale.ID
	return nil
}

func (t *txn) UpdateSale(_ context.Context, sale domain.SaleRecord) error {
	current, ok := t.st.sales[sale.ID]
	if !ok || current.OwnerID != sale.OwnerID {
		return store.ErrNotFound
	}
	if saleNumberKey(current) != saleNumberKey(sale) {
		return fmt.Errorf("update sale %s: sequence number and period are immutable", sale.ID)
	}
	t.st.sales[sale.ID] = sale
	return nil
}

func (t *txn) InsertRefund(_ context.Context, refund domain.RefundRecord) error {
	for _, existing := range t.st.refunds {
		if existing.OwnerID == refund.OwnerID && existing.SourceSaleID == refund.SourceSaleID {
			return fmt.Errorf("refund for sale %s: %w", refund.SourceSaleID, store.ErrConflict)
		}
	}
	t.st.refunds = append(t.st.refunds, refund)
	return nil
}

func (t *txn) GetRefundBySale(_ context.Context, ownerID string, saleID string) (*domain.RefundRecord, error) {
	for _, refund := range t.st.refunds {
		if refund.OwnerID == ownerID && refund.SourceSaleID == saleID {
			found := refund
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *txn) ListRefunds(_ context.Context, ownerID string, limit int) ([]domain.RefundRecord, error) {
	out := make([]domain.RefundRecord, 0, 16)
	for i := len(t.st.refunds) - 1; i >= 0; i-- {
		if t.st.refunds[i].OwnerID != ownerID {
			continue
		}
		out = append(out, t.st.refunds[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *txn) GetBuyer(_ context.Context, ownerID string, id string) (*domain.Buyer, error) {
	buyer, ok := t.st.buyers[id]
	if !ok || buyer.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &buyer, nil
}

func (t *txn) InsertBuyer(_ context.Context, buyer domain.Buyer) error {
	if _, exists := t.st.buyers[buyer.ID]; exists {
		return fmt.Errorf("insert buyer %s: %w", buyer.ID, store.ErrConflict)
	}
	t.st.buyers[buyer.ID] = buyer
	return nil
}

func (t *txn) UpdateBuyer(_ context.Context, buyer domain.Buyer) error {
	current, ok := t.st.buyers[buyer.ID]
	if !ok || current.OwnerID != buyer.OwnerID {
		return store.ErrNotFound
	}
	buyer.SequenceNumber = current.SequenceNumber
	buyer.CreatedAt = current.CreatedAt
	t.st.buyers[buyer.ID] = buyer
	return nil
}

func (t *txn) InsertPayment(_ context.Context, payment domain.PaymentRecord) error {
	t.st.payments = append(t.st.payments, payment)
	return nil
}

func (t *txn) ListPaymentsByBuyer(_ context.Context, ownerID string, buyerID string) ([]domain.PaymentRecord, error) {
	out := make([]domain.PaymentRecord, 0, 8)
	for _, payment := range t.st.payments {
		if payment.OwnerID == ownerID && payment.BuyerID == buyerID {
			out = append(out, payment)
		}
	}
	return out, nil
}

func saleNumberKey(sale domain.SaleRecord) string {
	return fmt.Sprintf("%s::%s::%d", sale.OwnerID, sale.Period, sale.SequenceNumber)
}

func compareSaleDate(a, b domain.SaleRecord) int {
	if c := a.SaleDate.Compare(b.SaleDate); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
