package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/sales"
	"shopledger/backend/internal/store"
)

func (s *Service) RecordSale(ctx context.Context, draft domain.SaleDraft) (domain.SaleRecord, error) {
	if err := sales.ValidateDraft(draft); err != nil {
		return domain.SaleRecord{}, err
	}

	ownerID := s.ownerID(ctx)
	var sale domain.SaleRecord
	err := s.commit(ctx, "RecordSale", ownerID, func(ctx context.Context, tx store.Tx) error {
		var err error
		sale, err = s.recorder.Record(ctx, tx, ownerID, draft)
		return err
	})
	if err != nil {
		return domain.SaleRecord{}, err
	}

	s.invalidate(ctx, ownerID, []string{sale.BuyerID}, []string{sale.ItemID})
	s.log.WithFields(logrus.Fields{
		"op":       "RecordSale",
		"owner_id": ownerID,
		"sale_id":  sale.ID,
		"period":   sale.Period.String(),
		"number":   sale.SequenceNumber,
		"refund":   sale.IsRefund,
	}).Info("sale recorded")
	return sale, nil
}

// CorrectSale is an administrative edit of a committed sale.
func (s *Service) CorrectSale(ctx context.Context, saleID string, correction domain.SaleCorrection) (domain.SaleRecord, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.SaleRecord{}, err
	}

	ownerID := s.ownerID(ctx)
	var before, after domain.SaleRecord
	err := s.commit(ctx, "CorrectSale", ownerID, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetSale(ctx, ownerID, saleID)
		if err != nil {
			return fmt.Errorf("load sale %s: %w", saleID, err)
		}
		before = *current
		after, err = s.recorder.Correct(ctx, tx, ownerID, saleID, correction)
		return err
	})
	if err != nil {
		return domain.SaleRecord{}, err
	}

	s.invalidate(ctx, ownerID, []string{before.BuyerID, after.BuyerID}, []string{after.ItemID})
	s.log.WithFields(logrus.Fields{
		"op":         "CorrectSale",
		"owner_id":   ownerID,
		"sale_id":    saleID,
		"old_profit": before.Profit.String(),
		"new_profit": after.Profit.String(),
	}).Info("sale corrected")
	return after, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.SaleRecord, error) {
	ownerID := s.ownerID(ctx)
	var sale domain.SaleRecord
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		found, err := r.GetSale(ctx, ownerID, saleID)
		if err != nil {
			return err
		}
		sale = *found
		return nil
	})
	return sale, err
}

// ListSales returns the sales of a period in sale number order. A zero
// period means the current month.
func (s *Service) ListSales(ctx context.Context, period domain.Period) ([]domain.SaleRecord, error) {
	if period.IsZero() {
		period = domain.PeriodOf(s.now())
	}
	ownerID := s.ownerID(ctx)
	var out []domain.SaleRecord
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		out, err = r.ListSalesByPeriod(ctx, ownerID, period)
		return err
	})
	return out, err
}

func (s *Service) ListRefunds(ctx context.Context, limit int) ([]domain.RefundRecord, error) {
	if limit < 1 {
		limit = 50
	}
	ownerID := s.ownerID(ctx)
	var out []domain.RefundRecord
	err := s.view(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		out, err = r.ListRefunds(ctx, ownerID, limit)
		return err
	})
	return out, err
}
