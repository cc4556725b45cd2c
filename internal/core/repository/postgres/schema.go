package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	id                    UUID PRIMARY KEY,
	student_id            TEXT NOT NULL,
	current_balance       NUMERIC(14,2) NOT NULL DEFAULT 0,
	total_deposits        NUMERIC(14,2) NOT NULL DEFAULT 0,
	total_withdrawals     NUMERIC(14,2) NOT NULL DEFAULT 0,
	status                TEXT NOT NULL DEFAULT 'active',
	low_balance_threshold NUMERIC(14,2) NOT NULL DEFAULT 100,
	daily_spending_limit  NUMERIC(14,2) NULL,
	last_activity         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_student ON wallets(student_id);
CREATE INDEX IF NOT EXISTS idx_wallets_status_activity ON wallets(status, last_activity DESC);

CREATE TABLE IF NOT EXISTS transactions (
	id                   UUID PRIMARY KEY,
	transaction_number   TEXT NOT NULL UNIQUE,
	transaction_type     TEXT NOT NULL CHECK (transaction_type IN ('income', 'expense')),
	transaction_category TEXT NOT NULL,
	amount               NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	currency             TEXT NOT NULL,
	payment_method       TEXT NOT NULL,
	transaction_date     TIMESTAMPTZ NOT NULL,
	status               TEXT NOT NULL,
	payer_name           TEXT NOT NULL DEFAULT '',
	payer_contact        TEXT NOT NULL DEFAULT '',
	reference_number     TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id               UUID PRIMARY KEY,
	wallet_id        UUID NOT NULL REFERENCES wallets(id),
	transaction_type TEXT NOT NULL CHECK (transaction_type IN ('deposit', 'purchase', 'withdrawal')),
	amount           NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	balance_before   NUMERIC(14,2) NOT NULL,
	balance_after    NUMERIC(14,2) NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	item_details     JSONB NOT NULL DEFAULT '{}',
	transaction_id   UUID NOT NULL REFERENCES transactions(id),
	transaction_date TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet_date ON wallet_transactions(wallet_id, transaction_date);
`

// EnsureSchema creates the wallet tables when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
