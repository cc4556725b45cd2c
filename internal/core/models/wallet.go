package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "active"
	WalletStatusInactive WalletStatus = "inactive"
)

// DefaultLowBalanceThreshold applies to wallets created without an explicit threshold.
var DefaultLowBalanceThreshold = decimal.NewFromInt(100)

// Wallet is the running balance of one student. CurrentBalance always equals
// TotalDeposits - TotalWithdrawals when every mutation goes through the use case.
type Wallet struct {
	ID                  uuid.UUID           `json:"id" db:"id"`
	StudentID           string              `json:"student_id" db:"student_id"`
	CurrentBalance      decimal.Decimal     `json:"current_balance" db:"current_balance"`
	TotalDeposits       decimal.Decimal     `json:"total_deposits" db:"total_deposits"`
	TotalWithdrawals    decimal.Decimal     `json:"total_withdrawals" db:"total_withdrawals"`
	Status              WalletStatus        `json:"status" db:"status"`
	LowBalanceThreshold decimal.Decimal     `json:"low_balance_threshold" db:"low_balance_threshold"`
	DailySpendingLimit  decimal.NullDecimal `json:"daily_spending_limit" db:"daily_spending_limit"`
	LastActivity        time.Time           `json:"last_activity" db:"last_activity"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

// NewWallet returns an active wallet with zeroed counters.
func NewWallet(studentID string, threshold decimal.Decimal, now time.Time) *Wallet {
	return &Wallet{
		ID:                  uuid.New(),
		StudentID:           studentID,
		CurrentBalance:      decimal.Zero,
		TotalDeposits:       decimal.Zero,
		TotalWithdrawals:    decimal.Zero,
		Status:              WalletStatusActive,
		LowBalanceThreshold: threshold,
		LastActivity:        now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// IsLow reports whether the balance dropped under the warning threshold.
func (w *Wallet) IsLow() bool {
	return w.CurrentBalance.LessThan(w.LowBalanceThreshold)
}

// WalletSettings is a partial update; nil fields are left untouched.
type WalletSettings struct {
	Status              *WalletStatus    `json:"status,omitempty"`
	LowBalanceThreshold *decimal.Decimal `json:"low_balance_threshold,omitempty"`
	// DailySpendingLimit with Valid=false clears the limit.
	DailySpendingLimit *decimal.NullDecimal `json:"daily_spending_limit,omitempty"`
}

// WalletsSummary is the aggregate over all active wallets.
type WalletsSummary struct {
	Wallets      []Wallet        `json:"wallets"`
	TotalWallets int             `json:"total_wallets"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}
