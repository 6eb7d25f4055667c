package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
)

// treasuryAgentID is the external-funds actor debited when a wallet is
// funded from outside the system.
var treasuryAgentID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ensure creates a zero-balance wallet for the agent unless one exists.
func (r *Repository) Ensure(ctx context.Context, agentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (agent_id) VALUES ($1)
		ON CONFLICT (agent_id) DO NOTHING
	`, agentID)
	return err
}

// EnsureTx is Ensure inside the caller's transaction.
func (r *Repository) EnsureTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (agent_id) VALUES ($1)
		ON CONFLICT (agent_id) DO NOTHING
	`, agentID)
	return err
}

func (r *Repository) Get(ctx context.Context, agentID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		SELECT agent_id, balance_cents, reserved_cents, spend_ceiling_cents, created_at, updated_at
		FROM wallets WHERE agent_id = $1
	`, agentID))
}

// GetTx reads the wallet inside the caller's transaction. Balance and
// reserved are always read live; available is never cached.
func (r *Repository) GetTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `
		SELECT agent_id, balance_cents, reserved_cents, spend_ceiling_cents, created_at, updated_at
		FROM wallets WHERE agent_id = $1
	`, agentID))
}

// Deposit credits the wallet and journals a DEPOSIT transaction, both in
// one transaction. The wallet is created on first reference.
func (r *Repository) Deposit(ctx context.Context, agentID uuid.UUID, amountCents int64) (*models.Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := r.EnsureTx(ctx, tx, agentID); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE wallets SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE agent_id = $2
	`, amountCents, agentID)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		TxType:        models.TxTypeDeposit,
		DebitAgentID:  treasuryAgentID,
		CreditAgentID: agentID,
		AmountCents:   amountCents,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO transactions (tx_type, debit_agent_id, credit_agent_id, amount_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, txn.TxType, txn.DebitAgentID, txn.CreditAgentID, txn.AmountCents)
	if err := row.Scan(&txn.ID, &txn.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

// SetCeiling sets or clears the per-transaction spend cap. A nil ceiling
// clears it. The wallet is created on first reference.
func (r *Repository) SetCeiling(ctx context.Context, agentID uuid.UUID, ceilingCents *int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (agent_id, spend_ceiling_cents) VALUES ($1, $2)
		ON CONFLICT (agent_id) DO UPDATE
		SET spend_ceiling_cents = EXCLUDED.spend_ceiling_cents, updated_at = now()
	`, agentID, ceilingCents)
	return err
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.AgentID, &w.BalanceCents, &w.ReservedCents, &w.SpendCeilingCents, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
