package ledger

import (
	"context"
	"fmt"
	"time"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

// AuditTrail is the append-only log of inventory quantity changes. Entries
// are never updated or deleted.
type AuditTrail struct {
	now func() time.Time
}

func NewAuditTrail(now func() time.Time) *AuditTrail {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AuditTrail{now: now}
}

// Append is the only write path for history entries.
func (a *AuditTrail) Append(ctx context.Context, tx store.Tx, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if entry.OwnerID == "" || entry.ItemID == "" {
		return domain.HistoryEntry{}, fmt.Errorf("history entry requires owner and item")
	}
	if !entry.Type.Valid() {
		return domain.HistoryEntry{}, fmt.Errorf("history entry type %q unknown", entry.Type)
	}
	if entry.Delta == 0 || entry.Delta != entry.NewQuantity-entry.OldQuantity {
		return domain.HistoryEntry{}, fmt.Errorf("history entry delta %d does not match %d -> %d", entry.Delta, entry.OldQuantity, entry.NewQuantity)
	}
	if entry.NewQuantity < 0 {
		return domain.HistoryEntry{}, fmt.Errorf("history entry would record negative quantity %d", entry.NewQuantity)
	}
	if entry.ID == "" {
		entry.ID = xid.New("hist")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}

	if err := tx.InsertHistory(ctx, entry); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("append history for item %s: %w", entry.ItemID, err)
	}
	return entry, nil
}

// Reconstruct derives the on-hand quantity from the item's initial purchase
// and the sum of its history deltas.
func (a *AuditTrail) Reconstruct(ctx context.Context, r store.Reader, item domain.InventoryItem) (int, error) {
	sum, err := r.SumHistoryDelta(ctx, item.OwnerID, item.ID)
	if err != nil {
		return 0, fmt.Errorf("sum history for item %s: %w", item.ID, err)
	}
	return item.PurchasedQty + sum, nil
}

func (a *AuditTrail) Check(ctx context.Context, r store.Reader, item domain.InventoryItem) (domain.ItemReconciliation, error) {
	reconstructed, err := a.Reconstruct(ctx, r, item)
	if err != nil {
		return domain.ItemReconciliation{}, err
	}
	return domain.ItemReconciliation{
		ItemID:        item.ID,
		SKU:           item.SKU,
		Name:          item.Name,
		PurchasedQty:  item.PurchasedQty,
		HistoryDelta:  reconstructed - item.PurchasedQty,
		Reconstructed: reconstructed,
		Quantity:      item.Quantity,
		Consistent:    reconstructed == item.Quantity,
	}, nil
}

// Reconcile checks every item of an owner and reports the ones whose stored
// quantity disagrees with their history.
func (a *AuditTrail) Reconcile(ctx context.Context, r store.Reader, ownerID string) (domain.ReconciliationReport, error) {
	items, err := r.ListItems(ctx, ownerID)
	if err != nil {
		return domain.ReconciliationReport{}, fmt.Errorf("list items: %w", err)
	}

	report := domain.ReconciliationReport{
		OwnerID:   ownerID,
		CheckedAt: a.now(),
		Items:     len(items),
		Drifts:    make([]domain.ItemReconciliation, 0),
	}
	for _, item := range items {
		check, err := a.Check(ctx, r, item)
		if err != nil {
			return domain.ReconciliationReport{}, err
		}
		if !check.Consistent {
			report.Drifts = append(report.Drifts, check)
		}
	}
	return report, nil
}
