package repositories

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/services"
)

// LedgerRepo persists the hash chain. The unique (scope, prev_hash)
// index is the storage-level guarantee that two appends can never claim
// the same predecessor, even across processes.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const entryColumns = `id, seq, scope, actor_type, actor_id, actor_label, action, severity,
	ref_type, ref_id, before, after, metadata, prev_hash, entry_hash, created_at`

func (r *LedgerRepo) Insert(ctx context.Context, e *models.LedgerEntry) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO audit_ledger
			(id, scope, actor_type, actor_id, actor_label, action, severity,
			 ref_type, ref_id, before, after, metadata, prev_hash, entry_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq
	`, e.ID, e.Scope, e.ActorType, e.ActorID, e.ActorLabel, e.Action, e.Severity,
		e.RefType, e.RefID, e.Before, e.After, e.Metadata, e.PrevHash, e.EntryHash, e.CreatedAt,
	).Scan(&e.Seq)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "prev_hash") {
		return services.ErrConcurrencyConflict
	}
	return err
}

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.Seq, &e.Scope, &e.ActorType, &e.ActorID, &e.ActorLabel,
		&e.Action, &e.Severity, &e.RefType, &e.RefID, &e.Before, &e.After, &e.Metadata,
		&e.PrevHash, &e.EntryHash, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepo) LastEntry(ctx context.Context, scope string) (*models.LedgerEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM audit_ledger WHERE scope = $1
		ORDER BY seq DESC LIMIT 1
	`, scope))
}

func (r *LedgerRepo) List(ctx context.Context, scope string, f services.LedgerFilter) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_ledger WHERE scope = $1`
	args := []any{scope}

	addFilter := func(column string, value any) {
		args = append(args, value)
		query += " AND " + column + " = $" + strconv.Itoa(len(args))
	}
	if f.ActorType != nil {
		addFilter("actor_type", *f.ActorType)
	}
	if f.Action != nil {
		addFilter("action", *f.Action)
	}
	if f.Severity != nil {
		addFilter("severity", *f.Severity)
	}
	if f.RefType != nil {
		addFilter("ref_type", *f.RefType)
	}
	if f.RefID != nil {
		addFilter("ref_id", *f.RefID)
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += " AND created_at <= $" + strconv.Itoa(len(args))
	}

	args = append(args, f.Limit, f.Offset)
	query += " ORDER BY created_at DESC, seq DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *LedgerRepo) WalkRange(ctx context.Context, scope string, from, to *time.Time) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_ledger WHERE scope = $1`
	args := []any{scope}
	if from != nil {
		args = append(args, *from)
		query += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += " AND created_at <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY seq ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Seq, &e.Scope, &e.ActorType, &e.ActorID, &e.ActorLabel,
			&e.Action, &e.Severity, &e.RefType, &e.RefID, &e.Before, &e.After, &e.Metadata,
			&e.PrevHash, &e.EntryHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LedgerRepo) Scopes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT scope FROM audit_ledger ORDER BY scope`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}
