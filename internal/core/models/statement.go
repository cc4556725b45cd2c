package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Statement struct {
	Wallet       Wallet              `json:"wallet"`
	StartDate    time.Time           `json:"start_date"`
	EndDate      time.Time           `json:"end_date"`
	Transactions []WalletTransaction `json:"transactions"`
	Summary      StatementSummary    `json:"summary"`
}

type StatementSummary struct {
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalPurchases   decimal.Decimal `json:"total_purchases"`
	TransactionCount int             `json:"transaction_count"`
	// ClosingBalance is the balance as of EndDate.
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	// CurrentBalance is the live wallet balance at generation time.
	CurrentBalance decimal.Decimal `json:"current_balance"`
}
