package models

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type TopUpRequest struct {
	WalletID        uuid.UUID       `json:"-"`
	Amount          decimal.Decimal `json:"-"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number"`
	PayerName       string          `json:"payer_name"`
	PayerContact    string          `json:"payer_contact"`
	Notes           string          `json:"notes"`
}

type PurchaseRequest struct {
	WalletID    uuid.UUID       `json:"-"`
	Amount      decimal.Decimal `json:"-"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	ItemDetails types.JSONText  `json:"item_details"`
	Notes       string          `json:"notes"`
}

type WithdrawRequest struct {
	WalletID        uuid.UUID       `json:"-"`
	Amount          decimal.Decimal `json:"-"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number"`
	PayerName       string          `json:"payer_name"`
	PayerContact    string          `json:"payer_contact"`
	Description     string          `json:"description"`
	Notes           string          `json:"notes"`
}

// OperationResult is what every balance-changing operation returns.
type OperationResult struct {
	Transaction       Transaction       `json:"transaction"`
	WalletTransaction WalletTransaction `json:"wallet_transaction"`
	NewBalance        decimal.Decimal   `json:"new_balance"`
	LowBalance        bool              `json:"low_balance"`
}
