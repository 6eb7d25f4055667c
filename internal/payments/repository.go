package payments

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/backend/internal/models"
	"github.com/hireloop/backend/internal/wallet"
)

// escrowAgentID is the internal actor funds pass through while held.
var escrowAgentID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

var (
	errEscrowNotFound      = errors.New("escrow not found")
	errEscrowNotHeld       = errors.New("escrow is not in HELD state")
	errTransactionNotFound = errors.New("transaction not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Hold runs inside the caller's transaction. It:
// a) Reserves amountCents on the payer wallet (conditional UPDATE; the
//    predicate balance - reserved >= amount is the authoritative
//    solvency check)
// b) Inserts an ESCROW_HOLD record into transactions
// c) Inserts the escrow row tagged with the negotiation id
func (r *Repository) Hold(ctx context.Context, tx pgx.Tx, negotiationID, fromAgentID, toAgentID uuid.UUID, amountCents int64, purpose, memo string, metadata json.RawMessage) (*models.Escrow, error) {
	result, err := tx.Exec(ctx, `
		UPDATE wallets
		SET reserved_cents = reserved_cents + $1, updated_at = now()
		WHERE agent_id = $2 AND balance_cents - reserved_cents >= $1
	`, amountCents, fromAgentID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, wallet.ErrInsufficientFunds
	}

	var holdTxID uuid.UUID
	row := tx.QueryRow(ctx, `
		INSERT INTO transactions (tx_type, negotiation_id, debit_agent_id, credit_agent_id, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, models.TxTypeEscrowHold, negotiationID, fromAgentID, escrowAgentID, amountCents)
	if err := row.Scan(&holdTxID); err != nil {
		return nil, err
	}

	esc := &models.Escrow{
		NegotiationID: negotiationID,
		FromAgentID:   fromAgentID,
		ToAgentID:     toAgentID,
		AmountCents:   amountCents,
		Status:        models.EscrowStatusHeld,
		Purpose:       purpose,
		Memo:          memo,
		Metadata:      metadata,
		HoldTxID:      holdTxID,
	}
	row = tx.QueryRow(ctx, `
		INSERT INTO escrows (negotiation_id, from_agent_id, to_agent_id, amount_cents, status, purpose, memo, metadata, hold_tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, esc.NegotiationID, esc.FromAgentID, esc.ToAgentID, esc.AmountCents, esc.Status, esc.Purpose, esc.Memo, esc.Metadata, esc.HoldTxID)
	if err := row.Scan(&esc.ID, &esc.CreatedAt, &esc.UpdatedAt); err != nil {
		return nil, err
	}
	return esc, nil
}

// Release runs in its own transaction: pays the recipient from the held
// funds and marks the escrow released. The status CAS makes a second
// release of the same escrow fail instead of paying twice.
func (r *Repository) Release(ctx context.Context, escrowID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var negotiationID, fromAgentID, toAgentID uuid.UUID
	var amountCents int64
	row := tx.QueryRow(ctx, `
		SELECT negotiation_id, from_agent_id, to_agent_id, amount_cents
		FROM escrows WHERE id = $1
	`, escrowID)
	if err := row.Scan(&negotiationID, &fromAgentID, &toAgentID, &amountCents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errEscrowNotFound
		}
		return err
	}

	// The recipient may never have funded a wallet of its own.
	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (agent_id) VALUES ($1)
		ON CONFLICT (agent_id) DO NOTHING
	`, toAgentID)
	if err != nil {
		return err
	}

	// Lock both wallet rows in deterministic order (by UUID) so two
	// opposite-direction releases cannot deadlock.
	ids := []uuid.UUID{fromAgentID, toAgentID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT agent_id FROM wallets WHERE agent_id = $1 FOR UPDATE
		`, id).Scan(&locked)
		if err != nil {
			return err
		}
	}

	var releaseTxID uuid.UUID
	row = tx.QueryRow(ctx, `
		INSERT INTO transactions (tx_type, negotiation_id, debit_agent_id, credit_agent_id, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, models.TxTypeEscrowRelease, negotiationID, escrowAgentID, toAgentID, amountCents)
	if err := row.Scan(&releaseTxID); err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `
		UPDATE escrows SET status = $1, settlement_tx_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.EscrowStatusReleased, releaseTxID, escrowID, models.EscrowStatusHeld)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errEscrowNotHeld
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance_cents = balance_cents - $1, reserved_cents = reserved_cents - $1, updated_at = now()
		WHERE agent_id = $2
	`, amountCents, fromAgentID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE wallets SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE agent_id = $2
	`, amountCents, toAgentID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Refund runs in its own transaction: un-reserves the payer's funds and
// marks the escrow refunded.
func (r *Repository) Refund(ctx context.Context, escrowID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var negotiationID, fromAgentID uuid.UUID
	var amountCents int64
	row := tx.QueryRow(ctx, `
		SELECT negotiation_id, from_agent_id, amount_cents
		FROM escrows WHERE id = $1
	`, escrowID)
	if err := row.Scan(&negotiationID, &fromAgentID, &amountCents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errEscrowNotFound
		}
		return err
	}

	var refundTxID uuid.UUID
	row = tx.QueryRow(ctx, `
		INSERT INTO transactions (tx_type, negotiation_id, debit_agent_id, credit_agent_id, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, models.TxTypeEscrowRefund, negotiationID, escrowAgentID, fromAgentID, amountCents)
	if err := row.Scan(&refundTxID); err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `
		UPDATE escrows SET status = $1, settlement_tx_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.EscrowStatusRefunded, refundTxID, escrowID, models.EscrowStatusHeld)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errEscrowNotHeld
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets SET reserved_cents = reserved_cents - $1, updated_at = now()
		WHERE agent_id = $2
	`, amountCents, fromAgentID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const escrowColumns = `id, negotiation_id, from_agent_id, to_agent_id, amount_cents, status, purpose, memo, metadata, hold_tx_id, settlement_tx_id, created_at, updated_at`

func (r *Repository) GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	esc, err := scanEscrow(r.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errEscrowNotFound
	}
	return esc, err
}

// GetEscrowByNegotiation returns the negotiation's escrow, or nil when
// none exists yet. Presentation reads tolerate the absence.
func (r *Repository) GetEscrowByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Escrow, error) {
	esc, err := scanEscrow(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE negotiation_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, negotiationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return esc, err
}

// GetEscrowForTransaction finds the escrow a journal entry belongs to,
// or nil for entries with no escrow (deposits).
func (r *Repository) GetEscrowForTransaction(ctx context.Context, txID uuid.UUID) (*models.Escrow, error) {
	esc, err := scanEscrow(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE hold_tx_id = $1 OR settlement_tx_id = $1
	`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return esc, err
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := scanTransaction(r.pool.QueryRow(ctx, `
		SELECT id, tx_type, negotiation_id, debit_agent_id, credit_agent_id, amount_cents, created_at
		FROM transactions WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errTransactionNotFound
	}
	return txn, err
}

// ListTransactionsForAgent returns journal entries where the agent is on
// either side, newest first.
func (r *Repository) ListTransactionsForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tx_type, negotiation_id, debit_agent_id, credit_agent_id, amount_cents, created_at
		FROM transactions
		WHERE debit_agent_id = $1 OR credit_agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.TxType, &txn.NegotiationID, &txn.DebitAgentID, &txn.CreditAgentID, &txn.AmountCents, &txn.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &txn)
	}
	return list, rows.Err()
}

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.NegotiationID, &e.FromAgentID, &e.ToAgentID, &e.AmountCents, &e.Status, &e.Purpose, &e.Memo, &e.Metadata, &e.HoldTxID, &e.SettlementTxID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.TxType, &t.NegotiationID, &t.DebitAgentID, &t.CreditAgentID, &t.AmountCents, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
