package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

// CreateItem registers a stocked product. Its opening quantity is the
// purchased quantity that reconciliation starts from, so no history entry is
// written for it.
func (s *Service) CreateItem(ctx context.Context, draft domain.ItemDraft) (domain.InventoryItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	extra := &domain.ValidationError{}
	if draft.UnitCost != nil && draft.UnitCost.IsNegative() {
		extra.Add("unit_cost", "gte=0")
	}
	domain.CheckNonNegative(extra, map[string]decimal.Decimal{"msrp": draft.MSRP})
	if err := domain.Merge(domain.Validate(draft), extra); err != nil {
		return domain.InventoryItem{}, err
	}

	ownerID := s.ownerID(ctx)
	now := s.now()
	item := domain.InventoryItem{
		ID:           xid.New("item"),
		OwnerID:      ownerID,
		SKU:          strings.ToUpper(strings.TrimSpace(draft.SKU)),
		UPC:          strings.TrimSpace(draft.UPC),
		Name:         strings.TrimSpace(draft.Name),
		Quantity:     draft.Quantity,
		UnitCost:     *draft.UnitCost,
		MSRP:         draft.MSRP,
		PurchasedQty: draft.Quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.commit(ctx, "CreateItem", ownerID, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.log.WithFields(logrus.Fields{"op": "CreateItem", "owner_id": ownerID, "item_id": item.ID, "quantity": item.Quantity}).Info("item created")
	return item, nil
}

// UpdateItemDetails edits descriptive fields and the cost basis. Sales keep
// the cost they were recorded with.
func (s *Service) UpdateItemDetails(ctx context.Context, itemID string, update domain.ItemUpdate) (domain.InventoryItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	extra := &domain.ValidationError{}
	if update.UnitCost != nil && update.UnitCost.IsNegative() {
		extra.Add("unit_cost", "gte=0")
	}
	if update.MSRP != nil && update.MSRP.IsNegative() {
		extra.Add("msrp", "gte=0")
	}
	if err := domain.Merge(domain.Validate(update), extra); err != nil {
		return domain.InventoryItem{}, err
	}

	ownerID := s.ownerID(ctx)
	var updated domain.InventoryItem
	err := s.commit(ctx, "UpdateItemDetails", ownerID, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetItemForUpdate(ctx, ownerID, itemID)
		if err != nil {
			return fmt.Errorf("load item %s: %w", itemID, err)
		}
		updated = *current
		if update.SKU != nil {
			updated.SKU = strings.ToUpper(strings.TrimSpace(*update.SKU))
		}
		if update.UPC != nil {
			updated.UPC = strings.TrimSpace(*update.UPC)
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return domain.NewValidationError("name", "required")
			}
			updated.Name = name
		}
		if update.UnitCost != nil {
			updated.UnitCost = *update.UnitCost
		}
		if update.MSRP != nil {
			updated.MSRP = *update.MSRP
		}
		updated.UpdatedAt = s.now()
		return tx.UpdateItemDetails(ctx, updated)
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return updated, nil
}

func (s *Service) GetItem(ctx context.Context, itemID string) (domain.InventoryItem, error) {
	ownerID := s.ownerID(ctx)
	var item domain.InventoryItem
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		found, err := r.GetItem(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		item = *found
		return nil
	})
	return item, err
}

func (s *Service) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	ownerID := s.ownerID(ctx)
	var items []domain.InventoryItem
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		items, err = r.ListItems(ctx, ownerID)
		return err
	})
	return items, err
}

func (s *Service) RestockInventory(ctx context.Context, req domain.RestockRequest) (domain.HistoryEntry, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.HistoryEntry{}, err
	}
	extra := &domain.ValidationError{}
	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		extra.Add("unit_cost", "gte=0")
	}
	if err := domain.Merge(domain.Validate(req), extra); err != nil {
		return domain.HistoryEntry{}, err
	}

	ownerID := s.ownerID(ctx)
	var entry domain.HistoryEntry
	err := s.commit(ctx, "RestockInventory", ownerID, func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = s.inventory.Restock(ctx, tx, ownerID, req.ItemID, req.Qty, req.Reason, req.UnitCost)
		return err
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	s.log.WithFields(logrus.Fields{"op": "RestockInventory", "owner_id": ownerID, "item_id": req.ItemID, "delta": entry.Delta}).Info("inventory restocked")
	return entry, nil
}

func (s *Service) WriteOffInventory(ctx context.Context, req domain.WriteOffRequest) (domain.HistoryEntry, error) {
	if err := domain.Validate(req); err != nil {
		return domain.HistoryEntry{}, err
	}

	ownerID := s.ownerID(ctx)
	var entry domain.HistoryEntry
	err := s.commit(ctx, "WriteOffInventory", ownerID, func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = s.inventory.WriteOff(ctx, tx, ownerID, req.ItemID, req.Qty, req.Reason)
		return err
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	s.log.WithFields(logrus.Fields{
		"op":       "WriteOffInventory",
		"owner_id": ownerID,
		"item_id":  req.ItemID,
		"delta":    entry.Delta,
		"reason":   entry.Reason,
	}).Info("inventory written off")
	return entry, nil
}

func (s *Service) ListItemHistory(ctx context.Context, itemID string, limit int) ([]domain.HistoryEntry, error) {
	ownerID := s.ownerID(ctx)
	var out []domain.HistoryEntry
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		if _, err := r.GetItem(ctx, ownerID, itemID); err != nil {
			return err
		}
		var err error
		out, err = r.ListHistory(ctx, ownerID, itemID, limit)
		return err
	})
	return out, err
}

func (s *Service) ReconcileItem(ctx context.Context, itemID string) (domain.ItemReconciliation, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ItemReconciliation{}, err
	}

	ownerID := s.ownerID(ctx)
	var check domain.ItemReconciliation
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		item, err := r.GetItem(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		check, err = s.audit.Check(ctx, r, *item)
		return err
	})
	if err != nil {
		return domain.ItemReconciliation{}, err
	}
	if !check.Consistent {
		s.log.WithFields(logrus.Fields{
			"op":            "ReconcileItem",
			"owner_id":      ownerID,
			"item_id":       itemID,
			"quantity":      check.Quantity,
			"reconstructed": check.Reconstructed,
		}).Warn("item quantity disagrees with its history")
	}
	return check, nil
}

func (s *Service) ReconcileInventory(ctx context.Context) (domain.ReconciliationReport, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ReconciliationReport{}, err
	}

	ownerID := s.ownerID(ctx)
	var report domain.ReconciliationReport
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		report, err = s.audit.Reconcile(ctx, r, ownerID)
		return err
	})
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	if len(report.Drifts) > 0 {
		s.log.WithFields(logrus.Fields{"op": "ReconcileInventory", "owner_id": ownerID, "drifts": len(report.Drifts)}).Warn("inventory drift detected")
	}
	return report, nil
}
