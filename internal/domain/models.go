package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Actor struct {
	UserID string
	Role   string
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type HistoryType string

const (
	HistoryPurchase HistoryType = "purchase"
	HistorySale     HistoryType = "sale"
	HistoryWriteOff HistoryType = "write-off"
)

func (t HistoryType) Valid() bool {
	switch t {
	case HistoryPurchase, HistorySale, HistoryWriteOff:
		return true
	}
	return false
}

type PaymentKind string

const (
	PaymentKindPayment PaymentKind = "payment"
	PaymentKindDeposit PaymentKind = "deposit"
)

// Period is a calendar month. Sale numbers restart at 1 in every period.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func ParsePeriod(raw string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", raw)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type InventoryItem struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	SKU          string          `json:"sku"`
	UPC          string          `json:"upc"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	MSRP         decimal.Decimal `json:"msrp"`
	PurchasedQty int             `json:"purchased_qty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type HistoryEntry struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	ItemID      string      `json:"item_id"`
	OldQuantity int         `json:"old_quantity"`
	NewQuantity int         `json:"new_quantity"`
	Delta       int         `json:"delta"`
	Type        HistoryType `json:"type"`
	Reason      string      `json:"reason"`
	SaleID      string      `json:"sale_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type SaleRecord struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	ItemID           string          `json:"item_id,omitempty"`
	BuyerID          string          `json:"buyer_id,omitempty"`
	ItemName         string          `json:"item_name"`
	Quantity         int             `json:"quantity"`
	UnitSalePrice    decimal.Decimal `json:"unit_sale_price"`
	UnitCostSnapshot decimal.Decimal `json:"unit_cost_snapshot"`
	Shipping         decimal.Decimal `json:"shipping"`
	Commission       decimal.Decimal `json:"commission"`
	OtherFees        decimal.Decimal `json:"other_fees"`
	Profit           decimal.Decimal `json:"profit"`
	Channel          string          `json:"channel"`
	SequenceNumber   int             `json:"sequence_number"`
	Period           Period          `json:"period"`
	SaleDate         time.Time       `json:"sale_date"`
	IsRefund         bool            `json:"is_refund"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SaleTotal is the gross price charged for the sale.
func (s SaleRecord) SaleTotal() decimal.Decimal {
	return s.UnitSalePrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

type RefundRecord struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	SourceSaleID     string          `json:"source_sale_id"`
	ItemName         string          `json:"item_name"`
	BuyerID          string          `json:"buyer_id,omitempty"`
	PurchaseAmount   decimal.Decimal `json:"purchase_amount"`
	SaleAmount       decimal.Decimal `json:"sale_amount"`
	ShippingAmount   decimal.Decimal `json:"shipping_amount"`
	OriginalSaleDate time.Time       `json:"original_sale_date"`
	DateRefunded     time.Time       `json:"date_refunded"`
	CreatedAt        time.Time       `json:"created_at"`
}

type Buyer struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	SequenceNumber int             `json:"sequence_number"`
	Name           string          `json:"name"`
	Credit         decimal.Decimal `json:"credit"`
	Discounts      decimal.Decimal `json:"discounts"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentRecord covers both payments and deposits; Kind tells them apart.
type PaymentRecord struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Kind         PaymentKind     `json:"kind"`
	BuyerID      string          `json:"buyer_id"`
	LinkedSaleID string          `json:"linked_sale_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method"`
	Note         string          `json:"note"`
	PaidAt       time.Time       `json:"paid_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

type BuyerFinancials struct {
	BuyerID        string          `json:"buyer_id"`
	SaleCount      int             `json:"sale_count"`
	TotalPurchased decimal.Decimal `json:"total_purchased"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	TotalDeposits  decimal.Decimal `json:"total_deposits"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
	Balance        decimal.Decimal `json:"balance"`
}

type ItemProfitSummary struct {
	ItemID       string          `json:"item_id"`
	SoldQty      int             `json:"sold_qty"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	ProfitMargin decimal.Decimal `json:"profit_margin"`
}

type ItemReconciliation struct {
	ItemID        string `json:"item_id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	PurchasedQty  int    `json:"purchased_qty"`
	HistoryDelta  int    `json:"history_delta"`
	Reconstructed int    `json:"reconstructed"`
	Quantity      int    `json:"quantity"`
	Consistent    bool   `json:"consistent"`
}

type ReconciliationReport struct {
	OwnerID   string               `json:"owner_id"`
	CheckedAt time.Time            `json:"checked_at"`
	Items     int                  `json:"items"`
	Drifts    []ItemReconciliation `json:"drifts"`
}
