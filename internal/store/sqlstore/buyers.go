package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
)

type buyerRow struct {
	ID             string          `db:"id"`
	OwnerID        string          `db:"owner_id"`
	SequenceNumber int             `db:"sequence_number"`
	Name           string          `db:"name"`
	Credit         decimal.Decimal `db:"credit"`
	Discounts      decimal.Decimal `db:"discounts"`
	CreatedAt      time.Time       `db:"created_at"`
}

const paymentColumns = `id, owner_id, kind, buyer_id, linked_sale_id, amount, method, note, paid_at, created_at`

type paymentRow struct {
	ID           string          `db:"id"`
	OwnerID      string          `db:"owner_id"`
	Kind         string          `db:"kind"`
	BuyerID      string          `db:"buyer_id"`
	LinkedSaleID sql.NullString  `db:"linked_sale_id"`
	Amount       decimal.Decimal `db:"amount"`
	Method       string          `db:"method"`
	Note         string          `db:"note"`
	PaidAt       time.Time       `db:"paid_at"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (t *txn) GetBuyer(ctx context.Context, ownerID string, id string) (*domain.Buyer, error) {
	var row buyerRow
	err := t.get(ctx, &row, `
		SELECT id, owner_id, sequence_number, name, credit, discounts, created_at
		FROM buyers WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &domain.Buyer{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		SequenceNumber: row.SequenceNumber,
		Name:           row.Name,
		Credit:         row.Credit,
		Discounts:      row.Discounts,
		CreatedAt:      row.CreatedAt.UTC(),
	}, nil
}

func (t *txn) InsertBuyer(ctx context.Context, buyer domain.Buyer) error {
	_, err := t.exec(ctx, `
		INSERT INTO buyers (id, owner_id, sequence_number, name, credit, discounts, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, buyer.ID, buyer.OwnerID, buyer.SequenceNumber, buyer.Name, buyer.Credit, buyer.Discounts, buyer.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert buyer %s: %w", buyer.ID, err)
	}
	return nil
}

func (t *txn) UpdateBuyer(ctx context.Context, buyer domain.Buyer) error {
	return t.execOne(ctx, `
		UPDATE buyers SET name = ?, credit = ?, discounts = ?
		WHERE owner_id = ? AND id = ?
	`, buyer.Name, buyer.Credit, buyer.Discounts, buyer.OwnerID, buyer.ID)
}

func (t *txn) InsertPayment(ctx context.Context, payment domain.PaymentRecord) error {
	_, err := t.exec(ctx, `
		INSERT INTO buyer_payments (`+paymentColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, payment.ID, payment.OwnerID, string(payment.Kind), payment.BuyerID, nullIfEmpty(payment.LinkedSaleID),
		payment.Amount, payment.Method, payment.Note, payment.PaidAt.UTC(), payment.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", payment.Kind, payment.ID, err)
	}
	return nil
}

func (t *txn) ListPaymentsByBuyer(ctx context.Context, ownerID string, buyerID string) ([]domain.PaymentRecord, error) {
	var rows []paymentRow
	err := t.selectAll(ctx, &rows, `
		SELECT `+paymentColumns+` FROM buyer_payments
		WHERE owner_id = ? AND buyer_id = ?
		ORDER BY position`, ownerID, buyerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PaymentRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PaymentRecord{
			ID:           row.ID,
			OwnerID:      row.OwnerID,
			Kind:         domain.PaymentKind(row.Kind),
			BuyerID:      row.BuyerID,
			LinkedSaleID: row.LinkedSaleID.String,
			Amount:       row.Amount,
			Method:       row.Method,
			Note:         row.Note,
			PaidAt:       row.PaidAt.UTC(),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
