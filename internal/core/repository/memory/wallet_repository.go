// Package memory keeps wallets in process memory. It is used by tests and by
// single-instance runs with STORAGE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/Nzyazin/schoolwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletRepo struct {
	mu           sync.Mutex
	wallets      map[uuid.UUID]models.Wallet
	byStudent    map[string]uuid.UUID
	transactions []models.Transaction
	lines        []models.WalletTransaction
}

func NewWalletRepo() *WalletRepo {
	return &WalletRepo{
		wallets:   make(map[uuid.UUID]models.Wallet),
		byStudent: make(map[string]uuid.UUID),
	}
}

var _ repository.WalletRepository = (*WalletRepo)(nil)

func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, id)
	}
	return &w, nil
}

func (r *WalletRepo) GetByStudentID(_ context.Context, studentID string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byStudent[studentID]
	if !ok {
		return nil, fmt.Errorf("%w: wallet for student %s", repository.ErrNotFound, studentID)
	}
	w := r.wallets[id]
	return &w, nil
}

func (r *WalletRepo) Create(_ context.Context, wallet *models.Wallet) (*models.Wallet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byStudent[wallet.StudentID]; ok {
		existing := r.wallets[id]
		return &existing, false, nil
	}

	r.wallets[wallet.ID] = *wallet
	r.byStudent[wallet.StudentID] = wallet.ID
	stored := *wallet
	return &stored, true, nil
}

func (r *WalletRepo) ListByStatus(_ context.Context, status models.WalletStatus) ([]models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wallets := []models.Wallet{}
	for _, w := range r.wallets {
		if w.Status == status {
			wallets = append(wallets, w)
		}
	}
	sort.SliceStable(wallets, func(i, j int) bool {
		return wallets[i].LastActivity.After(wallets[j].LastActivity)
	})
	return wallets, nil
}

func (r *WalletRepo) UpdateSettings(_ context.Context, wallet *models.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[wallet.ID]
	if !ok {
		return fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, wallet.ID)
	}
	w.Status = wallet.Status
	w.LowBalanceThreshold = wallet.LowBalanceThreshold
	w.DailySpendingLimit = wallet.DailySpendingLimit
	w.UpdatedAt = wallet.UpdatedAt
	r.wallets[wallet.ID] = w
	return nil
}

func (r *WalletRepo) ListTransactions(_ context.Context, walletID uuid.UUID, from, to time.Time) ([]models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := []models.WalletTransaction{}
	for _, l := range r.lines {
		if l.WalletID == walletID && !l.TransactionDate.Before(from) && !l.TransactionDate.After(to) {
			lines = append(lines, l)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].TransactionDate.Before(lines[j].TransactionDate)
	})
	return lines, nil
}

func (r *WalletRepo) NetBefore(_ context.Context, walletID uuid.UUID, before time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	net := decimal.Zero
	for _, l := range r.lines {
		if l.WalletID == walletID && l.TransactionDate.Before(before) {
			net = net.Add(l.SignedAmount())
		}
	}
	return net, nil
}

// Transactions returns a copy of the ledger entries.
func (r *WalletRepo) Transactions() []models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.Transaction(nil), r.transactions...)
}

// WalletTransactions returns a copy of every wallet line.
func (r *WalletRepo) WalletTransactions() []models.WalletTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.WalletTransaction(nil), r.lines...)
}

// ExecuteTxWithRetry serialises units of work on the repository lock. Writes are
// staged and applied only when fn succeeds.
func (r *WalletRepo) ExecuteTxWithRetry(ctx context.Context, fn func(tx repository.WalletTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{repo: r, wallets: make(map[uuid.UUID]models.Wallet)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, w := range tx.wallets {
		r.wallets[id] = w
	}
	r.transactions = append(r.transactions, tx.transactions...)
	r.lines = append(r.lines, tx.lines...)
	return nil
}

type memTx struct {
	repo         *WalletRepo
	wallets      map[uuid.UUID]models.Wallet
	transactions []models.Transaction
	lines        []models.WalletTransaction
}

func (t *memTx) LockWallet(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	if w, ok := t.wallets[id]; ok {
		return &w, nil
	}
	w, ok := t.repo.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, id)
	}
	return &w, nil
}

func (t *memTx) SpentBetween(_ context.Context, walletID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	spent := decimal.Zero
	for _, lines := range [][]models.WalletTransaction{t.repo.lines, t.lines} {
		for _, l := range lines {
			if l.WalletID != walletID || !l.TransactionType.IsDebit() {
				continue
			}
			if !l.TransactionDate.Before(from) && l.TransactionDate.Before(to) {
				spent = spent.Add(l.Amount)
			}
		}
	}
	return spent, nil
}

func (t *memTx) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	t.transactions = append(t.transactions, *txn)
	return nil
}

func (t *memTx) CreateWalletTransaction(_ context.Context, line *models.WalletTransaction) error {
	t.lines = append(t.lines, *line)
	return nil
}

func (t *memTx) UpdateBalance(_ context.Context, wallet *models.Wallet) error {
	current, ok := t.wallets[wallet.ID]
	if !ok {
		current, ok = t.repo.wallets[wallet.ID]
	}
	if !ok {
		return fmt.Errorf("%w: wallet with id %s", repository.ErrNotFound, wallet.ID)
	}
	current.CurrentBalance = wallet.CurrentBalance
	current.TotalDeposits = wallet.TotalDeposits
	current.TotalWithdrawals = wallet.TotalWithdrawals
	current.LastActivity = wallet.LastActivity
	current.UpdatedAt = wallet.UpdatedAt
	t.wallets[wallet.ID] = current
	return nil
}
