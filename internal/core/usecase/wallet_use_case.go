package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/logger"
	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/Nzyazin/schoolwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	operationTopUp    = "topup"
	operationPurchase = "purchase"
	operationWithdraw = "withdraw"
)

type WalletUsecase interface {
	CreateWalletForStudent(ctx context.Context, studentID string) (*models.Wallet, error)
	GetWalletByStudent(ctx context.Context, studentID string) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	UpdateSettings(ctx context.Context, walletID uuid.UUID, settings models.WalletSettings) (*models.Wallet, error)
	TopUp(ctx context.Context, req models.TopUpRequest) (*models.OperationResult, error)
	Purchase(ctx context.Context, req models.PurchaseRequest) (*models.OperationResult, error)
	Withdraw(ctx context.Context, req models.WithdrawRequest) (*models.OperationResult, error)
	TodaySpending(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	GenerateStatement(ctx context.Context, walletID uuid.UUID, start, end time.Time) (*models.Statement, error)
	GetAllActiveWallets(ctx context.Context) (*models.WalletsSummary, error)
}

type OperationObserver interface {
	ObserveOperation(operation, outcome string)
}

// LowBalanceNotifier receives the wallet state after a debit left it under its threshold.
type LowBalanceNotifier interface {
	NotifyLowBalance(ctx context.Context, wallet models.Wallet)
}

type Option func(*walletUsecase)

func WithClock(now func() time.Time) Option {
	return func(uc *walletUsecase) { uc.now = now }
}

// WithLocation sets the school time zone used for the daily spending window.
func WithLocation(loc *time.Location) Option {
	return func(uc *walletUsecase) { uc.location = loc }
}

func WithDefaultThreshold(threshold decimal.Decimal) Option {
	return func(uc *walletUsecase) { uc.defaultThreshold = threshold }
}

func WithObserver(o OperationObserver) Option {
	return func(uc *walletUsecase) { uc.observer = o }
}

func WithLowBalanceNotifier(n LowBalanceNotifier) Option {
	return func(uc *walletUsecase) { uc.notifier = n }
}

type walletUsecase struct {
	repo             repository.WalletRepository
	log              logger.Logger
	now              func() time.Time
	location         *time.Location
	defaultThreshold decimal.Decimal
	currency         models.Currency
	observer         OperationObserver
	notifier         LowBalanceNotifier
}

func NewWalletUsecase(repo repository.WalletRepository, log logger.Logger, opts ...Option) WalletUsecase {
	uc := &walletUsecase{
		repo:             repo,
		log:              log,
		now:              time.Now,
		location:         time.UTC,
		defaultThreshold: models.DefaultLowBalanceThreshold,
		currency:         models.INR,
		observer:         nopObserver{},
		notifier:         nopNotifier{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *walletUsecase) CreateWalletForStudent(ctx context.Context, studentID string) (*models.Wallet, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrStudentRequired
	}

	existing, err := uc.repo.GetByStudentID(ctx, studentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		uc.log.Error("Wallet lookup by student failed",
			logger.StringField("student_id", studentID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("get wallet by student: %w", err)
	}

	wallet, created, err := uc.repo.Create(ctx, models.NewWallet(studentID, uc.defaultThreshold, uc.now()))
	if err != nil {
		uc.log.Error("Wallet creation failed",
			logger.StringField("student_id", studentID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	if created {
		uc.log.Info("Wallet created",
			logger.StringField("wallet_id", wallet.ID.String()),
			logger.StringField("student_id", studentID))
	}
	return wallet, nil
}

// GetWalletByStudent never reports a missing wallet; it creates one instead.
func (uc *walletUsecase) GetWalletByStudent(ctx context.Context, studentID string) (*models.Wallet, error) {
	return uc.CreateWalletForStudent(ctx, studentID)
}

func (uc *walletUsecase) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := uc.repo.GetByID(ctx, walletID)
	if err != nil {
		return nil, uc.lookupError(walletID, err)
	}
	return wallet, nil
}

func (uc *walletUsecase) UpdateSettings(ctx context.Context, walletID uuid.UUID, settings models.WalletSettings) (*models.Wallet, error) {
	wallet, err := uc.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if s := settings.Status; s != nil {
		if *s != models.WalletStatusActive && *s != models.WalletStatusInactive {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidSettings, *s)
		}
		wallet.Status = *s
	}
	if t := settings.LowBalanceThreshold; t != nil {
		if t.IsNegative() || !uc.currency.Fits(*t) {
			return nil, fmt.Errorf("%w: low balance threshold %s", ErrInvalidSettings, t.String())
		}
		wallet.LowBalanceThreshold = *t
	}
	if l := settings.DailySpendingLimit; l != nil {
		if l.Valid && (!l.Decimal.IsPositive() || !uc.currency.Fits(l.Decimal)) {
			return nil, fmt.Errorf("%w: daily spending limit %s", ErrInvalidSettings, l.Decimal.String())
		}
		wallet.DailySpendingLimit = *l
	}
	wallet.UpdatedAt = uc.now()

	if err := uc.repo.UpdateSettings(ctx, wallet); err != nil {
		return nil, uc.lookupError(walletID, err)
	}

	uc.log.Info("Wallet settings updated",
		logger.StringField("wallet_id", walletID.String()),
		logger.StringField("status", string(wallet.Status)))
	return wallet, nil
}

func (uc *walletUsecase) TopUp(ctx context.Context, req models.TopUpRequest) (*models.OperationResult, error) {
	entry := ledgerEntry{
		walletID: req.WalletID,
		amount:   req.Amount,
		lineType: models.WalletDeposit,
		txn: models.Transaction{
			TransactionType:     models.TransactionIncome,
			TransactionCategory: models.CategoryWalletTopUp,
			PaymentMethod:       orDefault(req.PaymentMethod, models.PaymentMethodCash),
			PayerName:           req.PayerName,
			PayerContact:        req.PayerContact,
			ReferenceNumber:     req.ReferenceNumber,
			Notes:               req.Notes,
		},
		line: models.WalletTransaction{
			Description: "Wallet top-up",
			Category:    models.CategoryWalletTopUp,
		},
	}
	return uc.execute(ctx, operationTopUp, entry)
}

func (uc *walletUsecase) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.OperationResult, error) {
	category := orDefault(req.Category, models.CategoryWalletPurchase)
	entry := ledgerEntry{
		walletID: req.WalletID,
		amount:   req.Amount,
		lineType: models.WalletPurchase,
		txn: models.Transaction{
			TransactionType:     models.TransactionExpense,
			TransactionCategory: category,
			PaymentMethod:       models.PaymentMethodWallet,
			Notes:               req.Notes,
		},
		line: models.WalletTransaction{
			Description: req.Description,
			Category:    category,
			ItemDetails: req.ItemDetails,
		},
	}
	return uc.execute(ctx, operationPurchase, entry)
}

func (uc *walletUsecase) Withdraw(ctx context.Context, req models.WithdrawRequest) (*models.OperationResult, error) {
	entry := ledgerEntry{
		walletID: req.WalletID,
		amount:   req.Amount,
		lineType: models.WalletWithdrawal,
		txn: models.Transaction{
			TransactionType:     models.TransactionExpense,
			TransactionCategory: models.CategoryWalletWithdrawal,
			PaymentMethod:       orDefault(req.PaymentMethod, models.PaymentMethodCash),
			PayerName:           req.PayerName,
			PayerContact:        req.PayerContact,
			ReferenceNumber:     req.ReferenceNumber,
			Notes:               req.Notes,
		},
		line: models.WalletTransaction{
			Description: req.Description,
			Category:    models.CategoryWalletWithdrawal,
		},
	}
	return uc.execute(ctx, operationWithdraw, entry)
}

func (uc *walletUsecase) TodaySpending(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	from, to := uc.dayWindow(uc.now())

	var spent decimal.Decimal
	err := uc.repo.ExecuteTxWithRetry(ctx, func(tx repository.WalletTx) error {
		if _, err := tx.LockWallet(ctx, walletID); err != nil {
			return err
		}
		var err error
		spent, err = tx.SpentBetween(ctx, walletID, from, to)
		return err
	})
	if err != nil {
		return decimal.Zero, uc.lookupError(walletID, err)
	}
	return spent, nil
}

func (uc *walletUsecase) GenerateStatement(ctx context.Context, walletID uuid.UUID, start, end time.Time) (*models.Statement, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidPeriod,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	wallet, err := uc.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	lines, err := uc.repo.ListTransactions(ctx, walletID, start, end)
	if err != nil {
		uc.log.Error("Statement lines lookup failed",
			logger.StringField("wallet_id", walletID.String()),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}

	opening, err := uc.repo.NetBefore(ctx, walletID, start)
	if err != nil {
		uc.log.Error("Opening balance replay failed",
			logger.StringField("wallet_id", walletID.String()),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("opening balance: %w", err)
	}

	summary := models.StatementSummary{
		OpeningBalance:   opening,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		TotalPurchases:   decimal.Zero,
		TransactionCount: len(lines),
		CurrentBalance:   wallet.CurrentBalance,
	}
	for _, l := range lines {
		switch l.TransactionType {
		case models.WalletDeposit:
			summary.TotalDeposits = summary.TotalDeposits.Add(l.Amount)
		case models.WalletWithdrawal:
			summary.TotalWithdrawals = summary.TotalWithdrawals.Add(l.Amount)
		case models.WalletPurchase:
			summary.TotalPurchases = summary.TotalPurchases.Add(l.Amount)
		}
	}
	summary.ClosingBalance = opening.
		Add(summary.TotalDeposits).
		Sub(summary.TotalWithdrawals).
		Sub(summary.TotalPurchases)

	return &models.Statement{
		Wallet:       *wallet,
		StartDate:    start,
		EndDate:      end,
		Transactions: lines,
		Summary:      summary,
	}, nil
}

func (uc *walletUsecase) GetAllActiveWallets(ctx context.Context) (*models.WalletsSummary, error) {
	wallets, err := uc.repo.ListByStatus(ctx, models.WalletStatusActive)
	if err != nil {
		uc.log.Error("Active wallets lookup failed", logger.ErrorField("error", err))
		return nil, fmt.Errorf("list active wallets: %w", err)
	}

	total := decimal.Zero
	for _, w := range wallets {
		total = total.Add(w.CurrentBalance)
	}

	return &models.WalletsSummary{
		Wallets:      wallets,
		TotalWallets: len(wallets),
		TotalBalance: total,
	}, nil
}

type ledgerEntry struct {
	walletID uuid.UUID
	amount   decimal.Decimal
	lineType models.WalletTransactionType
	txn      models.Transaction
	line     models.WalletTransaction
}

// execute applies one ledger entry atomically: the wallet row is locked, the
// balance and daily limit checks run against it, and the transaction, the
// wallet line and the new balance are written in the same unit of work.
func (uc *walletUsecase) execute(ctx context.Context, operation string, entry ledgerEntry) (*models.OperationResult, error) {
	uc.logStart(operation, entry)

	if err := uc.validateAmount(entry.amount); err != nil {
		uc.log.Warn("Invalid amount",
			logger.StringField("wallet_id", entry.walletID.String()),
			logger.StringField("amount", entry.amount.String()))
		uc.observer.ObserveOperation(operation, outcome(err))
		return nil, err
	}

	var result models.OperationResult
	var wallet *models.Wallet
	err := uc.repo.ExecuteTxWithRetry(ctx, func(tx repository.WalletTx) error {
		var err error
		wallet, err = tx.LockWallet(ctx, entry.walletID)
		if err != nil {
			return err
		}
		if !wallet.IsActive() {
			return ErrWalletInactive
		}

		now := uc.now()
		if entry.lineType.IsDebit() {
			if err := uc.checkFunds(ctx, tx, wallet, entry.amount, now); err != nil {
				return err
			}
		}

		txn := entry.txn
		txn.ID = uuid.New()
		txn.TransactionNumber = newTransactionNumber(now)
		txn.Amount = entry.amount
		txn.Currency = uc.currency.Code
		txn.TransactionDate = now
		txn.Status = models.TransactionStatusCompleted
		if err := tx.CreateTransaction(ctx, &txn); err != nil {
			return err
		}

		line := entry.line
		line.ID = uuid.New()
		line.WalletID = wallet.ID
		line.TransactionType = entry.lineType
		line.Amount = entry.amount
		line.BalanceBefore = wallet.CurrentBalance
		line.BalanceAfter = wallet.CurrentBalance.Add(line.SignedAmount())
		line.TransactionID = txn.ID
		line.TransactionDate = now
		if err := tx.CreateWalletTransaction(ctx, &line); err != nil {
			return err
		}

		wallet.CurrentBalance = line.BalanceAfter
		if entry.lineType.IsDebit() {
			wallet.TotalWithdrawals = wallet.TotalWithdrawals.Add(entry.amount)
		} else {
			wallet.TotalDeposits = wallet.TotalDeposits.Add(entry.amount)
		}
		wallet.LastActivity = now
		wallet.UpdatedAt = now
		if err := tx.UpdateBalance(ctx, wallet); err != nil {
			return err
		}

		result = models.OperationResult{
			Transaction:       txn,
			WalletTransaction: line,
			NewBalance:        wallet.CurrentBalance,
		}
		return nil
	})
	if err != nil {
		err = uc.operationError(operation, entry, err)
		uc.observer.ObserveOperation(operation, outcome(err))
		return nil, err
	}

	uc.observer.ObserveOperation(operation, outcome(nil))
	if entry.lineType.IsDebit() && wallet.IsLow() {
		result.LowBalance = true
		uc.log.Warn("Low wallet balance",
			logger.StringField("wallet_id", wallet.ID.String()),
			logger.StringField("student_id", wallet.StudentID),
			logger.DecimalField("balance", wallet.CurrentBalance),
			logger.DecimalField("threshold", wallet.LowBalanceThreshold))
		uc.notifier.NotifyLowBalance(ctx, *wallet)
	}

	return &result, nil
}

func (uc *walletUsecase) logStart(operation string, entry ledgerEntry) {
	uc.log.Info("Starting operation",
		logger.StringField("wallet_id", entry.walletID.String()),
		logger.StringField("type", operation),
		logger.StringField("amount", entry.amount.String()))
}

func (uc *walletUsecase) validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if !uc.currency.Fits(amount) {
		return fmt.Errorf("%w: at most %d decimal places allowed", ErrInvalidAmount, uc.currency.MinorUnits)
	}
	return nil
}

func (uc *walletUsecase) checkFunds(ctx context.Context, tx repository.WalletTx, wallet *models.Wallet, amount decimal.Decimal, now time.Time) error {
	if wallet.CurrentBalance.LessThan(amount) {
		uc.log.Warn("Insufficient funds",
			logger.DecimalField("balance", wallet.CurrentBalance),
			logger.DecimalField("requested", amount))
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, wallet.CurrentBalance.StringFixed(2))
	}

	if !wallet.DailySpendingLimit.Valid {
		return nil
	}

	from, to := uc.dayWindow(now)
	spent, err := tx.SpentBetween(ctx, wallet.ID, from, to)
	if err != nil {
		return err
	}
	limit := wallet.DailySpendingLimit.Decimal
	if spent.Add(amount).GreaterThan(limit) {
		uc.log.Warn("Daily spending limit exceeded",
			logger.DecimalField("spent_today", spent),
			logger.DecimalField("requested", amount),
			logger.DecimalField("limit", limit))
		return fmt.Errorf("%w: %s", ErrDailyLimitExceeded, limit.StringFixed(2))
	}
	return nil
}

// dayWindow returns [local midnight, next local midnight) in the school time zone.
func (uc *walletUsecase) dayWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(uc.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, uc.location)
	return start, start.AddDate(0, 0, 1)
}

func (uc *walletUsecase) lookupError(walletID uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, walletID)
	}
	uc.log.Error("Wallet lookup failed",
		logger.StringField("wallet_id", walletID.String()),
		logger.ErrorField("error", err))
	return fmt.Errorf("get wallet: %w", err)
}

func (uc *walletUsecase) operationError(operation string, entry ledgerEntry, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrWalletNotFound, entry.walletID)
	case errors.Is(err, ErrWalletInactive),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrDailyLimitExceeded):
		return err
	default:
		uc.log.Error("Wallet operation failed",
			logger.StringField("wallet_id", entry.walletID.String()),
			logger.StringField("type", operation),
			logger.ErrorField("error", err))
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func newTransactionNumber(now time.Time) string {
	return "TXN-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrWalletNotFound):
		return "not_found"
	case errors.Is(err, ErrWalletInactive):
		return "inactive"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "limit_exceeded"
	default:
		return "error"
	}
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}

type nopNotifier struct{}

func (nopNotifier) NotifyLowBalance(context.Context, models.Wallet) {}
