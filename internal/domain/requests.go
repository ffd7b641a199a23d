package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemDraft struct {
	SKU      string           `json:"sku" validate:"max=64"`
	UPC      string           `json:"upc" validate:"max=64"`
	Name     string           `json:"name" validate:"required,max=200"`
	Quantity int              `json:"quantity" validate:"gte=0"`
	UnitCost *decimal.Decimal `json:"unit_cost" validate:"required"`
	MSRP     decimal.Decimal  `json:"msrp"`
}

// ItemUpdate edits descriptive fields and the cost basis. Quantity is only
// ever changed through the inventory ledger.
type ItemUpdate struct {
	SKU      *string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	UPC      *string          `json:"upc,omitempty" validate:"omitempty,max=64"`
	Name     *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
	MSRP     *decimal.Decimal `json:"msrp,omitempty"`
}

type RestockRequest struct {
	ItemID   string           `json:"item_id" validate:"required"`
	Qty      int              `json:"qty" validate:"required,gte=1"`
	Reason   string           `json:"reason" validate:"max=500"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
}

type WriteOffRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Qty    int    `json:"qty" validate:"required,gte=1"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type SaleDraft struct {
	ItemID        string           `json:"item_id,omitempty"`
	BuyerID       string           `json:"buyer_id,omitempty"`
	ItemName      string           `json:"item_name,omitempty" validate:"max=200"`
	Quantity      int              `json:"quantity" validate:"required,gt=0"`
	UnitSalePrice *decimal.Decimal `json:"unit_sale_price" validate:"required"`
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty" validate:"excluded_with=ItemID"`
	Shipping      decimal.Decimal  `json:"shipping"`
	Commission    decimal.Decimal  `json:"commission"`
	OtherFees     decimal.Decimal  `json:"other_fees"`
	SaleDate      *time.Time       `json:"sale_date" validate:"required"`
	Channel       string           `json:"channel" validate:"max=64"`
	IsRefund      bool             `json:"is_refund"`
}

// SaleCorrection is an administrative edit of a committed sale. Nil fields
// keep their stored value.
type SaleCorrection struct {
	BuyerID       *string          `json:"buyer_id,omitempty"`
	ItemName      *string          `json:"item_name,omitempty" validate:"omitempty,max=200"`
	Quantity      *int             `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	UnitSalePrice *decimal.Decimal `json:"unit_sale_price,omitempty"`
	Shipping      *decimal.Decimal `json:"shipping,omitempty"`
	Commission    *decimal.Decimal `json:"commission,omitempty"`
	OtherFees     *decimal.Decimal `json:"other_fees,omitempty"`
	SaleDate      *time.Time       `json:"sale_date,omitempty"`
	Channel       *string          `json:"channel,omitempty" validate:"omitempty,max=64"`
	IsRefund      *bool            `json:"is_refund,omitempty"`
}

type BuyerDraft struct {
	Name      string          `json:"name" validate:"required,max=200"`
	Credit    decimal.Decimal `json:"credit"`
	Discounts decimal.Decimal `json:"discounts"`
}

type BuyerAdjustment struct {
	Credit    *decimal.Decimal `json:"credit,omitempty"`
	Discounts *decimal.Decimal `json:"discounts,omitempty"`
}

type PaymentDraft struct {
	BuyerID      string           `json:"buyer_id" validate:"required"`
	LinkedSaleID string           `json:"linked_sale_id,omitempty"`
	Amount       *decimal.Decimal `json:"amount" validate:"required"`
	Method       string           `json:"method" validate:"max=32"`
	Note         string           `json:"note" validate:"max=500"`
	PaidAt       *time.Time       `json:"paid_at,omitempty"`
}

type DepositDraft PaymentDraft
