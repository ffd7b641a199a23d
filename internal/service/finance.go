package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/sales"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

func (s *Service) CreateBuyer(ctx context.Context, draft domain.BuyerDraft) (domain.Buyer, error) {
	extra := &domain.ValidationError{}
	domain.CheckNonNegative(extra, map[string]decimal.Decimal{
		"credit":    draft.Credit,
		"discounts": draft.Discounts,
	})
	if err := domain.Merge(domain.Validate(draft), extra); err != nil {
		return domain.Buyer{}, err
	}

	ownerID := s.ownerID(ctx)
	var buyer domain.Buyer
	err := s.commit(ctx, "CreateBuyer", ownerID, func(ctx context.Context, tx store.Tx) error {
		seq, err := tx.NextSequence(ctx, ownerID, sales.BuyerScope)
		if err != nil {
			return fmt.Errorf("allocate buyer number: %w", err)
		}
		buyer = domain.Buyer{
			ID:             xid.New("buyer"),
			OwnerID:        ownerID,
			SequenceNumber: seq,
			Name:           strings.TrimSpace(draft.Name),
			Credit:         draft.Credit,
			Discounts:      draft.Discounts,
			CreatedAt:      s.now(),
		}
		return tx.InsertBuyer(ctx, buyer)
	})
	if err != nil {
		return domain.Buyer{}, err
	}
	return buyer, nil
}

// AdjustBuyer replaces the buyer's credit and discount totals.
func (s *Service) AdjustBuyer(ctx context.Context, buyerID string, adj domain.BuyerAdjustment) (domain.Buyer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Buyer{}, err
	}
	ve := &domain.ValidationError{}
	if adj.Credit != nil && adj.Credit.IsNegative() {
		ve.Add("credit", "gte=0")
	}
	if adj.Discounts != nil && adj.Discounts.IsNegative() {
		ve.Add("discounts", "gte=0")
	}
	if len(ve.Fields) > 0 {
		return domain.Buyer{}, ve
	}

	ownerID := s.ownerID(ctx)
	var buyer domain.Buyer
	err := s.commit(ctx, "AdjustBuyer", ownerID, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetBuyer(ctx, ownerID, buyerID)
		if err != nil {
			return fmt.Errorf("load buyer %s: %w", buyerID, err)
		}
		buyer = *current
		if adj.Credit != nil {
			buyer.Credit = *adj.Credit
		}
		if adj.Discounts != nil {
			buyer.Discounts = *adj.Discounts
		}
		return tx.UpdateBuyer(ctx, buyer)
	})
	if err != nil {
		return domain.Buyer{}, err
	}

	s.invalidate(ctx, ownerID, []string{buyerID}, nil)
	return buyer, nil
}

func (s *Service) RecordPayment(ctx context.Context, draft domain.PaymentDraft) (domain.PaymentRecord, error) {
	return s.recordPayment(ctx, "RecordPayment", domain.PaymentKindPayment, draft)
}

func (s *Service) RecordDeposit(ctx context.Context, draft domain.DepositDraft) (domain.PaymentRecord, error) {
	return s.recordPayment(ctx, "RecordDeposit", domain.PaymentKindDeposit, domain.PaymentDraft(draft))
}

func (s *Service) recordPayment(ctx context.Context, op string, kind domain.PaymentKind, draft domain.PaymentDraft) (domain.PaymentRecord, error) {
	extra := &domain.ValidationError{}
	if draft.Amount != nil && !draft.Amount.IsPositive() {
		extra.Add("amount", "gt=0")
	}
	if err := domain.Merge(domain.Validate(draft), extra); err != nil {
		return domain.PaymentRecord{}, err
	}

	ownerID := s.ownerID(ctx)
	now := s.now()
	payment := domain.PaymentRecord{
		ID:           xid.New(string(kind)),
		OwnerID:      ownerID,
		Kind:         kind,
		BuyerID:      strings.TrimSpace(draft.BuyerID),
		LinkedSaleID: strings.TrimSpace(draft.LinkedSaleID),
		Amount:       *draft.Amount,
		Method:       strings.TrimSpace(draft.Method),
		Note:         strings.TrimSpace(draft.Note),
		PaidAt:       now,
		CreatedAt:    now,
	}
	if draft.PaidAt != nil {
		payment.PaidAt = draft.PaidAt.UTC()
	}

	err := s.commit(ctx, op, ownerID, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetBuyer(ctx, ownerID, payment.BuyerID); err != nil {
			return fmt.Errorf("buyer %s: %w", payment.BuyerID, err)
		}
		if payment.LinkedSaleID != "" {
			sale, err := tx.GetSale(ctx, ownerID, payment.LinkedSaleID)
			if err != nil {
				return fmt.Errorf("linked sale %s: %w", payment.LinkedSaleID, err)
			}
			if sale.BuyerID != payment.BuyerID {
				return domain.NewValidationError("linked_sale_id", "buyer_mismatch")
			}
		}
		return tx.InsertPayment(ctx, payment)
	})
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	s.invalidate(ctx, ownerID, []string{payment.BuyerID}, nil)
	s.log.WithFields(logrus.Fields{
		"op":       op,
		"owner_id": ownerID,
		"buyer_id": payment.BuyerID,
		"amount":   payment.Amount.String(),
	}).Info("payment recorded")
	return payment, nil
}

func (s *Service) GetBuyerFinancials(ctx context.Context, buyerID string) (domain.BuyerFinancials, error) {
	ownerID := s.ownerID(ctx)
	return cachedRead(ctx, s, buyerKey(ownerID, buyerID), func(ctx context.Context, r store.Reader) (domain.BuyerFinancials, error) {
		return s.aggregator.BuyerFinancials(ctx, r, ownerID, buyerID)
	})
}

func (s *Service) GetItemProfitSummary(ctx context.Context, itemID string) (domain.ItemProfitSummary, error) {
	ownerID := s.ownerID(ctx)
	return cachedRead(ctx, s, itemKey(ownerID, itemID), func(ctx context.Context, r store.Reader) (domain.ItemProfitSummary, error) {
		return s.aggregator.ItemProfitSummary(ctx, r, ownerID, itemID)
	})
}
