package escrow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"meetnmart/pkg/utils"
)

// PostgresRepo persists transactions.
//
// Assumed tables:
// - escrow_transactions (status guarded updates)
// with a uniqueness constraint on reference:
//   UNIQUE (reference) WHERE reference <> ''
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, t Transaction) error {
	const q = `
INSERT INTO escrow_transactions (
  id, call_session_id, payer_id, payee_id, kind, amount_minor, currency,
  status, reference, dispute_reason, created_at, resolved_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		t.ID,
		t.CallSessionID,
		t.PayerID,
		t.PayeeID,
		t.Kind,
		t.AmountMinor,
		t.Currency,
		t.Status,
		t.Reference,
		t.DisputeReason,
		t.CreatedAt,
		t.ResolvedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Transaction, bool, error) {
	const q = `
SELECT id, call_session_id, payer_id, payee_id, kind, amount_minor, currency,
       status, reference, dispute_reason, created_at, resolved_at
FROM escrow_transactions
WHERE id = $1
`
	var t Transaction
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID,
		&t.CallSessionID,
		&t.PayerID,
		&t.PayeeID,
		&t.Kind,
		&t.AmountMinor,
		&t.Currency,
		&t.Status,
		&t.Reference,
		&t.DisputeReason,
		&t.CreatedAt,
		&t.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

// Update writes mutable lifecycle fields. Amount, parties and owning call are
// immutable after insert and deliberately absent from the statement.
func (r *PostgresRepo) Update(ctx context.Context, t Transaction) error {
	const q = `
UPDATE escrow_transactions
SET status = $2, reference = $3, dispute_reason = $4, resolved_at = $5
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		t.ID,
		t.Status,
		t.Reference,
		t.DisputeReason,
		t.ResolvedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Mutate runs fn against the row locked FOR UPDATE and persists the result in
// the same database transaction. Duplicate provider callbacks processed by
// different API instances serialize on the row lock, so the state guards in
// fn see the latest committed status.
func (r *PostgresRepo) Mutate(ctx context.Context, id string, fn func(t *Transaction) (bool, error)) (Transaction, bool, error) {
	const sel = `
SELECT id, call_session_id, payer_id, payee_id, kind, amount_minor, currency,
       status, reference, dispute_reason, created_at, resolved_at
FROM escrow_transactions
WHERE id = $1
FOR UPDATE
`
	const upd = `
UPDATE escrow_transactions
SET status = $2, reference = $3, dispute_reason = $4, resolved_at = $5
WHERE id = $1
`
	var (
		out   Transaction
		found bool
	)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var t Transaction
		err := tx.QueryRowContext(ctx, sel, id).Scan(
			&t.ID,
			&t.CallSessionID,
			&t.PayerID,
			&t.PayeeID,
			&t.Kind,
			&t.AmountMinor,
			&t.Currency,
			&t.Status,
			&t.Reference,
			&t.DisputeReason,
			&t.CreatedAt,
			&t.ResolvedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		write, err := fn(&t)
		if err != nil {
			return err
		}
		if write {
			if _, err := tx.ExecContext(ctx, upd, t.ID, t.Status, t.Reference, t.DisputeReason, t.ResolvedAt); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	return out, found, err
}

func (r *PostgresRepo) DeletePending(ctx context.Context, id string) error {
	// Status guard in SQL so a racing confirm cannot be deleted.
	const q = `
DELETE FROM escrow_transactions
WHERE id = $1 AND status = 'pending'
`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// FindByReference looks a transaction up by its provider charge reference,
// for reconciling callbacks that arrive without transaction metadata.
func (r *PostgresRepo) FindByReference(ctx context.Context, reference string) (Transaction, bool, error) {
	const q = `
SELECT id, call_session_id, payer_id, payee_id, kind, amount_minor, currency,
       status, reference, dispute_reason, created_at, resolved_at
FROM escrow_transactions
WHERE reference = $1
LIMIT 1
`
	var t Transaction
	err := r.db.QueryRowContext(ctx, q, reference).Scan(
		&t.ID,
		&t.CallSessionID,
		&t.PayerID,
		&t.PayeeID,
		&t.Kind,
		&t.AmountMinor,
		&t.Currency,
		&t.Status,
		&t.Reference,
		&t.DisputeReason,
		&t.CreatedAt,
		&t.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

// ListTransactions returns transactions created in [from, to), for reporting.
func (r *PostgresRepo) ListTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	const q = `
SELECT id, call_session_id, payer_id, payee_id, kind, amount_minor, currency,
       status, reference, dispute_reason, created_at, resolved_at
FROM escrow_transactions
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.CallSessionID,
			&t.PayerID,
			&t.PayeeID,
			&t.Kind,
			&t.AmountMinor,
			&t.Currency,
			&t.Status,
			&t.Reference,
			&t.DisputeReason,
			&t.CreatedAt,
			&t.ResolvedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
