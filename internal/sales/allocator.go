package sales

import (
	"context"
	"errors"
	"fmt"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
)

// ErrAllocationConflict is returned once a sale could not be numbered after
// the bounded number of retries. It is transient.
var ErrAllocationConflict = errors.New("sale number allocation conflict")

// Allocator hands out sale numbers. The counter lives in the store and is
// incremented inside the caller's unit of work, so a rolled back sale never
// spends a number and concurrent units serialize on the counter row.
type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

func (a *Allocator) Allocate(ctx context.Context, tx store.Tx, ownerID string, period domain.Period) (int, error) {
	if ownerID == "" || period.IsZero() {
		return 0, fmt.Errorf("allocate sale number: owner and period are required")
	}
	seq, err := tx.NextSequence(ctx, ownerID, SaleScope(period))
	if err != nil {
		return 0, fmt.Errorf("allocate sale number for %s: %w", period, err)
	}
	return seq, nil
}

// SaleScope is the counter scope of a period. Channels share it.
func SaleScope(period domain.Period) string {
	return "sale:" + period.String()
}

// BuyerScope numbers buyers per owner.
const BuyerScope = "buyer"
