package store

import (
	"context"
	"errors"
	"time"

	"shopledger/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write that lost a race with a concurrent unit of
	// work (serialization failure, duplicate sequence number, busy database).
	// The whole unit may be retried.
	ErrConflict = errors.New("conflicting concurrent update")
)

// Reader is the read side of the repository. Every lookup is scoped to the
// owner whose ledger the entity belongs to; entities of other owners are
// reported as ErrNotFound.
type Reader interface {
	GetItem(ctx context.Context, ownerID string, id string) (*domain.InventoryItem, error)
	ListItems(ctx context.Context, ownerID string) ([]domain.InventoryItem, error)
	// ListHistory returns entries newest first; limit < 1 returns all.
	ListHistory(ctx context.Context, ownerID string, itemID string, limit int) ([]domain.HistoryEntry, error)
	SumHistoryDelta(ctx context.Context, ownerID string, itemID string) (int, error)
	GetSale(ctx context.Context, ownerID string, id string) (*domain.SaleRecord, error)
	ListSalesByPeriod(ctx context.Context, ownerID string, period domain.Period) ([]domain.SaleRecord, error)
	ListSalesByItem(ctx context.Context, ownerID string, itemID string) ([]domain.SaleRecord, error)
	ListSalesByBuyer(ctx context.Context, ownerID string, buyerID string) ([]domain.SaleRecord, error)
	GetRefundBySale(ctx context.Context, ownerID string, saleID string) (*domain.RefundRecord, error)
	ListRefunds(ctx context.Context, ownerID string, limit int) ([]domain.RefundRecord, error)
	GetBuyer(ctx context.Context, ownerID string, id string) (*domain.Buyer, error)
	ListPaymentsByBuyer(ctx context.Context, ownerID string, buyerID string) ([]domain.PaymentRecord, error)
}

// Tx is a unit of work. Nothing written through a Tx is visible outside it
// until the enclosing WithTransaction call returns nil.
type Tx interface {
	Reader

	// GetItemForUpdate reads an item and holds it against concurrent writers
	// until the unit of work ends.
	GetItemForUpdate(ctx context.Context, ownerID string, id string) (*domain.InventoryItem, error)
	InsertItem(ctx context.Context, item domain.InventoryItem) error
	UpdateItemQuantity(ctx context.Context, ownerID string, id string, qty int, at time.Time) error
	// UpdateItemDetails writes every field except Quantity and PurchasedQty.
	UpdateItemDetails(ctx context.Context, item domain.InventoryItem) error
	InsertHistory(ctx context.Context, entry domain.HistoryEntry) error

	// NextSequence atomically increments and returns the counter for
	// (ownerID, scope). The increment is rolled back with the unit of work.
	NextSequence(ctx context.Context, ownerID string, scope string) (int, error)

	InsertSale(ctx context.Context, sale domain.SaleRecord) error
	UpdateSale(ctx context.Context, sale domain.SaleRecord) error
	InsertRefund(ctx context.Context, refund domain.RefundRecord) error
	InsertBuyer(ctx context.Context, buyer domain.Buyer) error
	UpdateBuyer(ctx context.Context, buyer domain.Buyer) error
	InsertPayment(ctx context.Context, payment domain.PaymentRecord) error
}

type Store interface {
	// WithTransaction runs fn as one atomic, isolated unit of work. If fn
	// returns an error every write it made is discarded.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn against committed data.
	View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
	Close() error
}
