package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

// Recorder commits sales. Record and Correct run inside the caller's unit of
// work; any error they return must abort it.
type Recorder struct {
	allocator  *Allocator
	inventory  *ledger.Inventory
	propagator *Propagator
	now        func() time.Time
}

func NewRecorder(allocator *Allocator, inventory *ledger.Inventory, propagator *Propagator, now func() time.Time) *Recorder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Recorder{
		allocator:  allocator,
		inventory:  inventory,
		propagator: propagator,
		now:        now,
	}
}

// ValidateDraft checks a sale draft without touching the store.
func ValidateDraft(draft domain.SaleDraft) error {
	extra := &domain.ValidationError{}
	if draft.UnitSalePrice != nil && draft.UnitSalePrice.IsNegative() {
		extra.Add("unit_sale_price", "gte=0")
	}
	if draft.UnitCost != nil && draft.UnitCost.IsNegative() {
		extra.Add("unit_cost", "gte=0")
	}
	domain.CheckNonNegative(extra, map[string]decimal.Decimal{
		"shipping":   draft.Shipping,
		"commission": draft.Commission,
		"other_fees": draft.OtherFees,
	})
	if strings.TrimSpace(draft.ItemID) == "" && strings.TrimSpace(draft.ItemName) == "" {
		extra.Add("item_name", "required_without=item_id")
	}
	return domain.Merge(domain.Validate(draft), extra)
}

// Record allocates the sale number, takes the sold units out of stock,
// persists the sale and, for a refunded sale, writes its refund record.
func (r *Recorder) Record(ctx context.Context, tx store.Tx, ownerID string, draft domain.SaleDraft) (domain.SaleRecord, error) {
	if err := ValidateDraft(draft); err != nil {
		return domain.SaleRecord{}, err
	}

	buyerID := strings.TrimSpace(draft.BuyerID)
	if buyerID != "" {
		if _, err := tx.GetBuyer(ctx, ownerID, buyerID); err != nil {
			return domain.SaleRecord{}, fmt.Errorf("buyer %s: %w", buyerID, err)
		}
	}

	saleDate := draft.SaleDate.UTC()
	period := domain.PeriodOf(saleDate)
	seq, err := r.allocator.Allocate(ctx, tx, ownerID, period)
	if err != nil {
		return domain.SaleRecord{}, err
	}

	now := r.now()
	sale := domain.SaleRecord{
		ID:             xid.New("sale"),
		OwnerID:        ownerID,
		BuyerID:        buyerID,
		ItemName:       strings.TrimSpace(draft.ItemName),
		Quantity:       draft.Quantity,
		UnitSalePrice:  *draft.UnitSalePrice,
		Shipping:       draft.Shipping,
		Commission:     draft.Commission,
		OtherFees:      draft.OtherFees,
		Channel:        strings.TrimSpace(draft.Channel),
		SequenceNumber: seq,
		Period:         period,
		SaleDate:       saleDate,
		IsRefund:       draft.IsRefund,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if itemID := strings.TrimSpace(draft.ItemID); itemID != "" {
		item, err := tx.GetItemForUpdate(ctx, ownerID, itemID)
		if err != nil {
			return domain.SaleRecord{}, fmt.Errorf("load item %s: %w", itemID, err)
		}
		sale.ItemID = item.ID
		sale.UnitCostSnapshot = item.UnitCost
		if sale.ItemName == "" {
			sale.ItemName = item.Name
		}
		if _, err := r.inventory.Decrement(ctx, tx, ownerID, item.ID, draft.Quantity, "sale", sale.ID); err != nil {
			return domain.SaleRecord{}, err
		}
	} else if draft.UnitCost != nil {
		sale.UnitCostSnapshot = *draft.UnitCost
	}

	sale.Profit = profitOf(sale)
	if err := tx.InsertSale(ctx, sale); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("insert sale %s: %w", sale.ID, err)
	}

	if sale.IsRefund {
		if _, err := r.propagator.Propagate(ctx, tx, sale); err != nil {
			return domain.SaleRecord{}, err
		}
	}
	return sale, nil
}

// Correct applies an administrative edit. Profit is recomputed from the new
// inputs and the frozen cost snapshot; inventory is never touched again.
func (r *Recorder) Correct(ctx context.Context, tx store.Tx, ownerID string, saleID string, c domain.SaleCorrection) (domain.SaleRecord, error) {
	if err := validateCorrection(c); err != nil {
		return domain.SaleRecord{}, err
	}

	current, err := tx.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("load sale %s: %w", saleID, err)
	}
	sale := *current

	if c.BuyerID != nil {
		buyerID := strings.TrimSpace(*c.BuyerID)
		if buyerID != "" && buyerID != sale.BuyerID {
			if _, err := tx.GetBuyer(ctx, ownerID, buyerID); err != nil {
				return domain.SaleRecord{}, fmt.Errorf("buyer %s: %w", buyerID, err)
			}
		}
		sale.BuyerID = buyerID
	}
	if c.ItemName != nil {
		sale.ItemName = strings.TrimSpace(*c.ItemName)
	}
	if c.Quantity != nil {
		sale.Quantity = *c.Quantity
	}
	if c.UnitSalePrice != nil {
		sale.UnitSalePrice = *c.UnitSalePrice
	}
	if c.Shipping != nil {
		sale.Shipping = *c.Shipping
	}
	if c.Commission != nil {
		sale.Commission = *c.Commission
	}
	if c.OtherFees != nil {
		sale.OtherFees = *c.OtherFees
	}
	if c.Channel != nil {
		sale.Channel = strings.TrimSpace(*c.Channel)
	}
	if c.SaleDate != nil {
		date := c.SaleDate.UTC()
		if domain.PeriodOf(date) != sale.Period {
			return domain.SaleRecord{}, domain.NewValidationError("sale_date", "same_period")
		}
		sale.SaleDate = date
	}

	newlyRefunded := false
	if c.IsRefund != nil {
		if current.IsRefund && !*c.IsRefund {
			return domain.SaleRecord{}, domain.NewValidationError("is_refund", "irreversible")
		}
		newlyRefunded = !current.IsRefund && *c.IsRefund
		sale.IsRefund = *c.IsRefund
	}

	sale.Profit = profitOf(sale)
	sale.UpdatedAt = r.now()
	if err := tx.UpdateSale(ctx, sale); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("update sale %s: %w", sale.ID, err)
	}

	if newlyRefunded {
		if _, err := r.propagator.Propagate(ctx, tx, sale); err != nil {
			return domain.SaleRecord{}, err
		}
	}
	return sale, nil
}

func validateCorrection(c domain.SaleCorrection) error {
	extra := &domain.ValidationError{}
	for field, amount := range map[string]*decimal.Decimal{
		"unit_sale_price": c.UnitSalePrice,
		"shipping":        c.Shipping,
		"commission":      c.Commission,
		"other_fees":      c.OtherFees,
	} {
		if amount != nil && amount.IsNegative() {
			extra.Add(field, "gte=0")
		}
	}
	return domain.Merge(domain.Validate(c), extra)
}

func profitOf(sale domain.SaleRecord) decimal.Decimal {
	return money.Profit(sale.UnitSalePrice, sale.Quantity, sale.UnitCostSnapshot, sale.Shipping, sale.Commission, sale.OtherFees)
}

// IsConflict reports whether err is worth retrying the whole unit of work.
func IsConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}
