package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

var ErrAlreadyRefunded = errors.New("sale already refunded")

// Propagator writes the refund record of a sale flagged as refunded. The
// refund is descriptive only: the sale keeps its profit and no stock returns
// to inventory.
type Propagator struct {
	now func() time.Time
}

func NewPropagator(now func() time.Time) *Propagator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Propagator{now: now}
}

func (p *Propagator) Propagate(ctx context.Context, tx store.Tx, sale domain.SaleRecord) (domain.RefundRecord, error) {
	if !sale.IsRefund {
		return domain.RefundRecord{}, fmt.Errorf("sale %s is not flagged as refunded", sale.ID)
	}

	_, err := tx.GetRefundBySale(ctx, sale.OwnerID, sale.ID)
	switch {
	case err == nil:
		return domain.RefundRecord{}, fmt.Errorf("%w: %s", ErrAlreadyRefunded, sale.ID)
	case !errors.Is(err, store.ErrNotFound):
		return domain.RefundRecord{}, fmt.Errorf("look up refund for sale %s: %w", sale.ID, err)
	}

	now := p.now().UTC()
	refund := domain.RefundRecord{
		ID:               xid.New("refund"),
		OwnerID:          sale.OwnerID,
		SourceSaleID:     sale.ID,
		ItemName:         sale.ItemName,
		BuyerID:          sale.BuyerID,
		PurchaseAmount:   money.Round2(money.Line(sale.UnitCostSnapshot, sale.Quantity)),
		SaleAmount:       money.Round2(sale.SaleTotal()),
		ShippingAmount:   money.Round2(sale.Shipping),
		OriginalSaleDate: sale.SaleDate,
		DateRefunded:     time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt:        now,
	}
	if err := tx.InsertRefund(ctx, refund); err != nil {
		return domain.RefundRecord{}, fmt.Errorf("insert refund for sale %s: %w", sale.ID, err)
	}
	return refund, nil
}
