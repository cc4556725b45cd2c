package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("record not found")

type WalletRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetByStudentID(ctx context.Context, studentID string) (*models.Wallet, error)
	// Create stores the wallet unless the student already owns one, in which
	// case the existing wallet is returned and created is false.
	Create(ctx context.Context, wallet *models.Wallet) (stored *models.Wallet, created bool, err error)
	// ListByStatus returns wallets ordered by last activity, newest first.
	ListByStatus(ctx context.Context, status models.WalletStatus) ([]models.Wallet, error)
	UpdateSettings(ctx context.Context, wallet *models.Wallet) error
	// ListTransactions returns lines with from <= transaction_date <= to, oldest first.
	ListTransactions(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]models.WalletTransaction, error)
	// NetBefore replays every line strictly before the given time.
	NetBefore(ctx context.Context, walletID uuid.UUID, before time.Time) (decimal.Decimal, error)
	// ExecuteTxWithRetry runs fn inside a single atomic unit of work. Nothing
	// fn wrote survives if it returns an error.
	ExecuteTxWithRetry(ctx context.Context, fn func(tx WalletTx) error) error
}

// WalletTx is the view of the store available inside ExecuteTxWithRetry.
type WalletTx interface {
	// LockWallet reads the wallet and holds it until the unit of work ends.
	LockWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	// SpentBetween sums purchase and withdrawal lines with from <= date < to.
	SpentBetween(ctx context.Context, walletID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	CreateWalletTransaction(ctx context.Context, line *models.WalletTransaction) error
	UpdateBalance(ctx context.Context, wallet *models.Wallet) error
}
