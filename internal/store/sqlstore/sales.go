package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
)

const saleColumns = `id, owner_id, item_id, buyer_id, item_name, quantity, unit_sale_price, unit_cost_snapshot,
	shipping, commission, other_fees, profit, channel, sequence_number, period, sale_date, is_refund, created_at, updated_at`

type saleRow struct {
	ID               string          `db:"id"`
	OwnerID          string          `db:"owner_id"`
	ItemID           sql.NullString  `db:"item_id"`
	BuyerID          sql.NullString  `db:"buyer_id"`
	ItemName         string          `db:"item_name"`
	Quantity         int             `db:"quantity"`
	UnitSalePrice    decimal.Decimal `db:"unit_sale_price"`
	UnitCostSnapshot decimal.Decimal `db:"unit_cost_snapshot"`
	Shipping         decimal.Decimal `db:"shipping"`
	Commission       decimal.Decimal `db:"commission"`
	OtherFees        decimal.Decimal `db:"other_fees"`
	Profit           decimal.Decimal `db:"profit"`
	Channel          string          `db:"channel"`
	SequenceNumber   int             `db:"sequence_number"`
	Period           string          `db:"period"`
	SaleDate         time.Time       `db:"sale_date"`
	IsRefund         bool            `db:"is_refund"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r saleRow) toDomain() (domain.SaleRecord, error) {
	period, err := domain.ParsePeriod(r.Period)
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("sale %s: %w", r.ID, err)
	}
	return domain.SaleRecord{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		ItemID:           r.ItemID.String,
		BuyerID:          r.BuyerID.String,
		ItemName:         r.ItemName,
		Quantity:         r.Quantity,
		UnitSalePrice:    r.UnitSalePrice,
		UnitCostSnapshot: r.UnitCostSnapshot,
		Shipping:         r.Shipping,
		Commission:       r.Commission,
		OtherFees:        r.OtherFees,
		Profit:           r.Profit,
		Channel:          r.Channel,
		SequenceNumber:   r.SequenceNumber,
		Period:           period,
		SaleDate:         r.SaleDate.UTC(),
		IsRefund:         r.IsRefund,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}, nil
}

func salesFromRows(rows []saleRow) ([]domain.SaleRecord, error) {
	out := make([]domain.SaleRecord, 0, len(rows))
	for _, row := range rows {
		sale, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, nil
}

const refundColumns = `id, owner_id, source_sale_id, item_name, buyer_id, purchase_amount, sale_amount, shipping_amount,
	original_sale_date, date_refunded, created_at`

type refundRow struct {
	ID               string          `db:"id"`
	OwnerID          string          `db:"owner_id"`
	SourceSaleID     string          `db:"source_sale_id"`
	ItemName         string          `db:"item_name"`
	BuyerID          sql.NullString  `db:"buyer_id"`
	PurchaseAmount   decimal.Decimal `db:"purchase_amount"`
	SaleAmount       decimal.Decimal `db:"sale_amount"`
	ShippingAmount   decimal.Decimal `db:"shipping_amount"`
	OriginalSaleDate time.Time       `db:"original_sale_date"`
	DateRefunded     time.Time       `db:"date_refunded"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (r refundRow) toDomain() domain.RefundRecord {
	return domain.RefundRecord{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		SourceSaleID:     r.SourceSaleID,
		ItemName:         r.ItemName,
		BuyerID:          r.BuyerID.String,
		PurchaseAmount:   r.PurchaseAmount,
		SaleAmount:       r.SaleAmount,
		ShippingAmount:   r.ShippingAmount,
		OriginalSaleDate: r.OriginalSaleDate.UTC(),
		DateRefunded:     r.DateRefunded.UTC(),
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func (t *txn) GetSale(ctx context.Context, ownerID string, id string) (*domain.SaleRecord, error) {
	var row saleRow
	if err := t.get(ctx, &row, `SELECT `+saleColumns+` FROM sales WHERE owner_id = ? AND id = ?`, ownerID, id); err != nil {
		return nil, err
	}
	sale, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (t *txn) ListSalesByPeriod(ctx context.Context, ownerID string, period domain.Period) ([]domain.SaleRecord, error) {
	var rows []saleRow
	err := t.selectAll(ctx, &rows, `
		SELECT `+saleColumns+` FROM sales
		WHERE owner_id = ? AND period = ?
		ORDER BY sequence_number`, ownerID, period.String())
	if err != nil {
		return nil, err
	}
	return salesFromRows(rows)
}

func (t *txn) ListSalesByItem(ctx context.Context, ownerID string, itemID string) ([]domain.SaleRecord, error) {
	var rows []saleRow
	err := t.selectAll(ctx, &rows, `
		SELECT `+saleColumns+` FROM sales
		WHERE owner_id = ? AND item_id = ?
		ORDER BY sale_date, id`, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	return salesFromRows(rows)
}

func (t *txn) ListSalesByBuyer(ctx context.Context, ownerID string, buyerID string) ([]domain.SaleRecord, error) {
	var rows []saleRow
	err := t.selectAll(ctx, &rows, `
		SELECT `+saleColumns+` FROM sales
		WHERE owner_id = ? AND buyer_id = ?
		ORDER BY sale_date, id`, ownerID, buyerID)
	if err != nil {
		return nil, err
	}
	return salesFromRows(rows)
}

func (t *txn) InsertSale(ctx context.Context, sale domain.SaleRecord) error {
	_, err := t.exec(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, sale.ID, sale.OwnerID, nullIfEmpty(sale.ItemID), nullIfEmpty(sale.BuyerID), sale.ItemName, sale.Quantity,
		sale.UnitSalePrice, sale.UnitCostSnapshot, sale.Shipping, sale.Commission, sale.OtherFees, sale.Profit,
		sale.Channel, sale.SequenceNumber, sale.Period.String(), sale.SaleDate.UTC(), sale.IsRefund,
		sale.CreatedAt.UTC(), sale.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", sale.ID, err)
	}
	return nil
}

// UpdateSale rewrites the editable columns. The sale number, period, item and
// cost snapshot are fixed at creation.
func (t *txn) UpdateSale(ctx context.Context, sale domain.SaleRecord) error {
	return t.execOne(ctx, `
		UPDATE sales
		SET buyer_id = ?, item_name = ?, quantity = ?, unit_sale_price = ?, shipping = ?, commission = ?,
			other_fees = ?, profit = ?, channel = ?, sale_date = ?, is_refund = ?, updated_at = ?
		WHERE owner_id = ? AND id = ? AND period = ? AND sequence_number = ?
	`, nullIfEmpty(sale.BuyerID), sale.ItemName, sale.Quantity, sale.UnitSalePrice, sale.Shipping, sale.Commission,
		sale.OtherFees, sale.Profit, sale.Channel, sale.SaleDate.UTC(), sale.IsRefund, sale.UpdatedAt.UTC(),
		sale.OwnerID, sale.ID, sale.Period.String(), sale.SequenceNumber)
}

func (t *txn) InsertRefund(ctx context.Context, refund domain.RefundRecord) error {
	_, err := t.exec(ctx, `
		INSERT INTO sale_refunds (`+refundColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, refund.ID, refund.OwnerID, refund.SourceSaleID, refund.ItemName, nullIfEmpty(refund.BuyerID),
		refund.PurchaseAmount, refund.SaleAmount, refund.ShippingAmount,
		refund.OriginalSaleDate.UTC(), refund.DateRefunded.UTC(), refund.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refund for sale %s: %w", refund.SourceSaleID, err)
	}
	return nil
}

func (t *txn) GetRefundBySale(ctx context.Context, ownerID string, saleID string) (*domain.RefundRecord, error) {
	var row refundRow
	if err := t.get(ctx, &row, `SELECT `+refundColumns+` FROM sale_refunds WHERE owner_id = ? AND source_sale_id = ?`, ownerID, saleID); err != nil {
		return nil, err
	}
	refund := row.toDomain()
	return &refund, nil
}

func (t *txn) ListRefunds(ctx context.Context, ownerID string, limit int) ([]domain.RefundRecord, error) {
	var rows []refundRow
	err := t.selectAll(ctx, &rows, `
		SELECT `+refundColumns+` FROM sale_refunds
		WHERE owner_id = ?
		ORDER BY position DESC`+limitClause(limit), ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefundRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
