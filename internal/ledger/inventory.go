package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// Inventory owns InventoryItem.Quantity. Every successful call changes the
// quantity and appends exactly one audit entry inside the caller's unit of
// work; a failed call leaves both untouched.
type Inventory struct {
	audit *AuditTrail
	now   func() time.Time
}

func NewInventory(audit *AuditTrail, now func() time.Time) *Inventory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Inventory{audit: audit, now: now}
}

// Decrement removes qty units for a sale.
func (l *Inventory) Decrement(ctx context.Context, tx store.Tx, ownerID string, itemID string, qty int, reason string, saleID string) (domain.HistoryEntry, error) {
	if qty < 1 {
		return domain.HistoryEntry{}, domain.NewValidationError("quantity", "gt=0")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "sale"
	}
	entry, _, err := l.apply(ctx, tx, ownerID, itemID, -qty, domain.HistorySale, reason, saleID)
	return entry, err
}

// WriteOff removes qty units that left stock without a sale (damage, loss).
func (l *Inventory) WriteOff(ctx context.Context, tx store.Tx, ownerID string, itemID string, qty int, reason string) (domain.HistoryEntry, error) {
	ve := &domain.ValidationError{}
	if qty < 1 {
		ve.Add("qty", "gte=1")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		ve.Add("reason", "required")
	}
	if len(ve.Fields) > 0 {
		return domain.HistoryEntry{}, ve
	}

	entry, _, err := l.apply(ctx, tx, ownerID, itemID, -qty, domain.HistoryWriteOff, reason, "")
	return entry, err
}

// Restock adds inbound units. When unitCost is given the item's cost basis
// moves to the weighted average of the stock on hand and the new units.
func (l *Inventory) Restock(ctx context.Context, tx store.Tx, ownerID string, itemID string, qty int, reason string, unitCost *decimal.Decimal) (domain.HistoryEntry, error) {
	if qty < 1 {
		return domain.HistoryEntry{}, domain.NewValidationError("qty", "gte=1")
	}
	if unitCost != nil && unitCost.IsNegative() {
		return domain.HistoryEntry{}, domain.NewValidationError("unit_cost", "gte=0")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "restock"
	}

	entry, before, err := l.apply(ctx, tx, ownerID, itemID, qty, domain.HistoryPurchase, strings.TrimSpace(reason), "")
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	if unitCost != nil {
		updated := *before
		updated.UnitCost = WeightedCost(before.UnitCost, before.Quantity, *unitCost, qty)
		updated.UpdatedAt = l.now()
		if err := tx.UpdateItemDetails(ctx, updated); err != nil {
			return domain.HistoryEntry{}, fmt.Errorf("update cost of item %s: %w", itemID, err)
		}
	}
	return entry, nil
}

func (l *Inventory) apply(ctx context.Context, tx store.Tx, ownerID string, itemID string, delta int, typ domain.HistoryType, reason string, saleID string) (domain.HistoryEntry, *domain.InventoryItem, error) {
	item, err := tx.GetItemForUpdate(ctx, ownerID, itemID)
	if err != nil {
		return domain.HistoryEntry{}, nil, fmt.Errorf("load item %s: %w", itemID, err)
	}

	newQty := item.Quantity + delta
	if newQty < 0 {
		return domain.HistoryEntry{}, nil, fmt.Errorf("%w: item %s has %d on hand, %d requested", ErrInsufficientStock, item.ID, item.Quantity, -delta)
	}

	at := l.now()
	if err := tx.UpdateItemQuantity(ctx, ownerID, itemID, newQty, at); err != nil {
		return domain.HistoryEntry{}, nil, fmt.Errorf("update quantity of item %s: %w", itemID, err)
	}

	entry, err := l.audit.Append(ctx, tx, domain.HistoryEntry{
		OwnerID:     ownerID,
		ItemID:      itemID,
		OldQuantity: item.Quantity,
		NewQuantity: newQty,
		Delta:       delta,
		Type:        typ,
		Reason:      reason,
		SaleID:      saleID,
		CreatedAt:   at,
	})
	if err != nil {
		return domain.HistoryEntry{}, nil, err
	}
	return entry, item, nil
}

// WeightedCost blends the current cost basis with an incoming lot.
func WeightedCost(oldCost decimal.Decimal, oldQty int, incomingCost decimal.Decimal, incomingQty int) decimal.Decimal {
	if incomingQty <= 0 {
		return oldCost
	}
	if oldQty <= 0 {
		return money.Round2(incomingCost)
	}
	totalValue := money.Line(oldCost, oldQty).Add(money.Line(incomingCost, incomingQty))
	return money.Round2(totalValue.Div(decimal.NewFromInt(int64(oldQty + incomingQty))))
}
