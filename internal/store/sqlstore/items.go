package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
)

const itemColumns = `id, owner_id, sku, upc, name, quantity, unit_cost, msrp, purchased_qty, created_at, updated_at`

type itemRow struct {
	ID           string          `db:"id"`
	OwnerID      string          `db:"owner_id"`
	SKU          string          `db:"sku"`
	UPC          string          `db:"upc"`
	Name         string          `db:"name"`
	Quantity     int             `db:"quantity"`
	UnitCost     decimal.Decimal `db:"unit_cost"`
	MSRP         decimal.Decimal `db:"msrp"`
	PurchasedQty int             `db:"purchased_qty"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r itemRow) toDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		SKU:          r.SKU,
		UPC:          r.UPC,
		Name:         r.Name,
		Quantity:     r.Quantity,
		UnitCost:     r.UnitCost,
		MSRP:         r.MSRP,
		PurchasedQty: r.PurchasedQty,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const historyColumns = `id, owner_id, item_id, old_quantity, new_quantity, delta, type, reason, sale_id, created_at`

type historyRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	ItemID      string         `db:"item_id"`
	OldQuantity int            `db:"old_quantity"`
	NewQuantity int            `db:"new_quantity"`
	Delta       int            `db:"delta"`
	Type        string         `db:"type"`
	Reason      string         `db:"reason"`
	SaleID      sql.NullString `db:"sale_id"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r historyRow) toDomain() domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		ItemID:      r.ItemID,
		OldQuantity: r.OldQuantity,
		NewQuantity: r.NewQuantity,
		Delta:       r.Delta,
		Type:        domain.HistoryType(r.Type),
		Reason:      r.Reason,
		SaleID:      r.SaleID.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (t *txn) GetItem(ctx context.Context, ownerID string, id string) (*domain.InventoryItem, error) {
	return t.getItem(ctx, ownerID, id, "")
}

func (t *txn) GetItemForUpdate(ctx context.Context, ownerID string, id string) (*domain.InventoryItem, error) {
	return t.getItem(ctx, ownerID, id, t.forUpdate())
}

func (t *txn) getItem(ctx context.Context, ownerID string, id string, suffix string) (*domain.InventoryItem, error) {
	var row itemRow
	err := t.get(ctx, &row, `SELECT `+itemColumns+` FROM inventory_items WHERE owner_id = ? AND id = ?`+suffix, ownerID, id)
	if err != nil {
		return nil, err
	}
	item := row.toDomain()
	return &item, nil
}

func (t *txn) ListItems(ctx context.Context, ownerID string) ([]domain.InventoryItem, error) {
	var rows []itemRow
	if err := t.selectAll(ctx, &rows, `SELECT `+itemColumns+` FROM inventory_items WHERE owner_id = ? ORDER BY name, id`, ownerID); err != nil {
		return nil, err
	}
	items := make([]domain.InventoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (t *txn) InsertItem(ctx context.Context, item domain.InventoryItem) error {
	if item.ID == "" || item.OwnerID == "" || item.Quantity < 0 {
		return fmt.Errorf("insert item: invalid item")
	}
	_, err := t.exec(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, item.ID, item.OwnerID, item.SKU, item.UPC, item.Name, item.Quantity, item.UnitCost, item.MSRP, item.PurchasedQty, item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	return nil
}

func (t *txn) UpdateItemQuantity(ctx context.Context, ownerID string, id string, qty int, at time.Time) error {
	if qty < 0 {
		return fmt.Errorf("update item %s: negative quantity %d", id, qty)
	}
	return t.execOne(ctx, `
		UPDATE inventory_items SET quantity = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?
	`, qty, at.UTC(), ownerID, id)
}

func (t *txn) UpdateItemDetails(ctx context.Context, item domain.InventoryItem) error {
	return t.execOne(ctx, `
		UPDATE inventory_items
		SET sku = ?, upc = ?, name = ?, unit_cost = ?, msrp = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?
	`, item.SKU, item.UPC, item.Name, item.UnitCost, item.MSRP, item.UpdatedAt.UTC(), item.OwnerID, item.ID)
}

func (t *txn) InsertHistory(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := t.exec(ctx, `
		INSERT INTO inventory_history (`+historyColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, entry.ID, entry.OwnerID, entry.ItemID, entry.OldQuantity, entry.NewQuantity, entry.Delta, string(entry.Type), entry.Reason, nullIfEmpty(entry.SaleID), entry.CreatedAt.UTC())
	return err
}

func (t *txn) ListHistory(ctx context.Context, ownerID string, itemID string, limit int) ([]domain.HistoryEntry, error) {
	var rows []historyRow
	err := t.selectAll(ctx, &rows, `
		SELECT `+historyColumns+` FROM inventory_history
		WHERE owner_id = ? AND item_id = ?
		ORDER BY position DESC`+limitClause(limit), ownerID, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (t *txn) SumHistoryDelta(ctx context.Context, ownerID string, itemID string) (int, error) {
	var total int
	err := t.get(ctx, &total, `SELECT COALESCE(SUM(delta), 0) FROM inventory_history WHERE owner_id = ? AND item_id = ?`, ownerID, itemID)
	return total, err
}

// NextSequence increments the counter row with an upsert. The row stays
// locked until the unit of work ends, which serializes concurrent callers.
func (t *txn) NextSequence(ctx context.Context, ownerID string, scope string) (int, error) {
	var next int
	err := t.get(ctx, &next, `
		INSERT INTO sequence_counters (owner_id, scope, value)
		VALUES (?, ?, 1)
		ON CONFLICT (owner_id, scope)
		DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value
	`, ownerID, scope)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", scope, err)
	}
	return next, nil
}

var _ store.Tx = (*txn)(nil)
