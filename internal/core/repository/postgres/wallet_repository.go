package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/logger"
	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/Nzyazin/schoolwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	maxRetries = 3

	walletColumns = `id, student_id, current_balance, total_deposits, total_withdrawals, status,
		low_balance_threshold, daily_spending_limit, last_activity, created_at, updated_at`

	walletTransactionColumns = `id, wallet_id, transaction_type, amount, balance_before, balance_after,
		description, category, item_details, transaction_id, transaction_date`
)

var retryBackoff = 25 * time.Millisecond

type postgresWalletRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresWalletRepo(db *sqlx.DB, log logger.Logger) repository.WalletRepository {
	return &postgresWalletRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	if err := r.db.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}

	return &wallet, nil
}

func (r *postgresWalletRepo) GetByStudentID(ctx context.Context, studentID string) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &wallet, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet for student %s", repository.ErrNotFound, studentID)
		}
		return nil, fmt.Errorf("error getting wallet by student: %w", err)
	}

	return &wallet, nil
}

func (r *postgresWalletRepo) Create(ctx context.Context, wallet *models.Wallet) (*models.Wallet, bool, error) {
	const query = `INSERT INTO wallets
		(id, student_id, current_balance, total_deposits, total_withdrawals, status,
		 low_balance_threshold, daily_spending_limit, last_activity, created_at, updated_at)
		VALUES (:id, :student_id, :current_balance, :total_deposits, :total_withdrawals, :status,
		 :low_balance_threshold, :daily_spending_limit, :last_activity, :created_at, :updated_at)
		ON CONFLICT (student_id) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, wallet)
	if err != nil {
		return nil, false, fmt.Errorf("create wallet: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create wallet: %w", err)
	}
	if inserted == 1 {
		return wallet, true, nil
	}

	existing, err := r.GetByStudentID(ctx, wallet.StudentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *postgresWalletRepo) ListByStatus(ctx context.Context, status models.WalletStatus) ([]models.Wallet, error) {
	wallets := []models.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE status = $1 ORDER BY last_activity DESC`
	if err := r.db.SelectContext(ctx, &wallets, query, status); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

func (r *postgresWalletRepo) UpdateSettings(ctx context.Context, wallet *models.Wallet) error {
	const query = `UPDATE wallets
		SET status = :status,
		    low_balance_threshold = :low_balance_threshold,
		    daily_spending_limit = :daily_spending_limit,
		    updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, wallet)
	if err != nil {
		return fmt.Errorf("update wallet settings: %w", err)
	}
	return expectOneRow(res, wallet.ID)
}

func (r *postgresWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]models.WalletTransaction, error) {
	lines := []models.WalletTransaction{}
	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 AND transaction_date >= $2 AND transaction_date <= $3
		ORDER BY transaction_date ASC, id ASC`
	if err := r.db.SelectContext(ctx, &lines, query, walletID, from, to); err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	return lines, nil
}

func (r *postgresWalletRepo) NetBefore(ctx context.Context, walletID uuid.UUID, before time.Time) (decimal.Decimal, error) {
	var net decimal.Decimal
	const query = `SELECT COALESCE(SUM(CASE WHEN transaction_type = 'deposit' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1 AND transaction_date < $2`
	if err := r.db.GetContext(ctx, &net, query, walletID, before); err != nil {
		return decimal.Zero, fmt.Errorf("replay wallet transactions: %w", err)
	}
	return net, nil
}

func (r *postgresWalletRepo) ExecuteTxWithRetry(ctx context.Context, fn func(tx repository.WalletTx) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := r.executeTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}

		lastErr = err
		r.log.Warn("Retrying wallet transaction",
			logger.IntField("attempt", attempt),
			logger.ErrorField("error", err))

		select {
		case <-time.After(time.Duration(attempt*attempt) * retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("transaction failed after %d attempts: %w", maxRetries, lastErr)
}

func (r *postgresWalletRepo) executeTx(ctx context.Context, fn func(tx repository.WalletTx) error) (err error) {
	var isCommitted bool
	// Writers on one wallet are serialised by the row lock taken in LockWallet.
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.log.Error("Error beginning transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Error("Transaction rollback failed",
					logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				r.log.Warn("Transaction rolled back due to error",
					logger.ErrorField("error", err))
			}
		}
	}()

	if err = fn(&txRepo{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return nil
}

type txRepo struct {
	tx *sqlx.Tx
}

func (t *txRepo) LockWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &wallet, nil
}

func (t *txRepo) SpentBetween(ctx context.Context, walletID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var spent decimal.Decimal
	const query = `SELECT COALESCE(SUM(amount), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1
		  AND transaction_type IN ('purchase', 'withdrawal')
		  AND transaction_date >= $2 AND transaction_date < $3`
	if err := t.tx.GetContext(ctx, &spent, query, walletID, from, to); err != nil {
		return decimal.Zero, fmt.Errorf("sum spending: %w", err)
	}
	return spent, nil
}

func (t *txRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	const query = `INSERT INTO transactions
		(id, transaction_number, transaction_type, transaction_category, amount, currency,
		 payment_method, transaction_date, status, payer_name, payer_contact, reference_number, notes)
		VALUES (:id, :transaction_number, :transaction_type, :transaction_category, :amount, :currency,
		 :payment_method, :transaction_date, :status, :payer_name, :payer_contact, :reference_number, :notes)`

	if _, err := t.tx.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (t *txRepo) CreateWalletTransaction(ctx context.Context, line *models.WalletTransaction) error {
	if len(line.ItemDetails) == 0 {
		line.ItemDetails = types.JSONText("{}")
	}

	const query = `INSERT INTO wallet_transactions
		(id, wallet_id, transaction_type, amount, balance_before, balance_after,
		 description, category, item_details, transaction_id, transaction_date)
		VALUES (:id, :wallet_id, :transaction_type, :amount, :balance_before, :balance_after,
		 :description, :category, :item_details, :transaction_id, :transaction_date)`

	if _, err := t.tx.NamedExecContext(ctx, query, line); err != nil {
		return fmt.Errorf("create wallet transaction: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateBalance(ctx context.Context, wallet *models.Wallet) error {
	const query = `UPDATE wallets
		SET current_balance = :current_balance,
		    total_deposits = :total_deposits,
		    total_withdrawals = :total_withdrawals,
		    last_activity = :last_activity,
		    updated_at = :updated_at
		WHERE id = :id`

	res, err := t.tx.NamedExecContext(ctx, query, wallet)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return expectOneRow(res, wallet.ID)
}

func expectOneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, id)
	}
	return nil
}

// 40001 serialization failure, 40P01 deadlock detected.
func isRetryableError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
