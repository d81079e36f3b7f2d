package repositories

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/services"
)

type EscalationRepo struct {
	pool *pgxpool.Pool
}

func NewEscalationRepo(pool *pgxpool.Pool) *EscalationRepo {
	return &EscalationRepo{pool: pool}
}

const escalationColumns = `id, scope, title, description, severity, status,
	acked_by, acked_at, closed_by, closed_at, notes, created_at`

func (r *EscalationRepo) Create(ctx context.Context, e *models.Escalation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escalations (id, scope, title, description, severity, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.Scope, e.Title, e.Description, e.Severity, e.Status).Scan(&e.CreatedAt)
}

func (r *EscalationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escalation, error) {
	var e models.Escalation
	err := r.pool.QueryRow(ctx,
		`SELECT `+escalationColumns+` FROM escalations WHERE id = $1`, id,
	).Scan(&e.ID, &e.Scope, &e.Title, &e.Description, &e.Severity, &e.Status,
		&e.AckedBy, &e.AckedAt, &e.ClosedBy, &e.ClosedAt, &e.Notes, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EscalationRepo) Update(ctx context.Context, e *models.Escalation) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escalations
		SET status = $2, acked_by = $3, acked_at = $4, closed_by = $5, closed_at = $6, notes = $7
		WHERE id = $1
	`, e.ID, e.Status, e.AckedBy, e.AckedAt, e.ClosedBy, e.ClosedAt, e.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *EscalationRepo) List(ctx context.Context, scope string, status *string, limit, offset int) ([]models.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE scope = $1`
	args := []any{scope}
	if status != nil {
		args = append(args, *status)
		query += ` AND status = $2`
	}
	args = append(args, limit, offset)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escalations []models.Escalation
	for rows.Next() {
		var e models.Escalation
		if err := rows.Scan(&e.ID, &e.Scope, &e.Title, &e.Description, &e.Severity, &e.Status,
			&e.AckedBy, &e.AckedAt, &e.ClosedBy, &e.ClosedAt, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}
