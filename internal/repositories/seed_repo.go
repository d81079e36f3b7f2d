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

type SeedRepo struct {
	pool *pgxpool.Pool
}

func NewSeedRepo(pool *pgxpool.Pool) *SeedRepo {
	return &SeedRepo{pool: pool}
}

const seedColumns = `id, scope, title, payload, status, reviewed_by, reviewed_at, created_at`

func (r *SeedRepo) Create(ctx context.Context, s *models.RegressionSeed) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO regression_seeds (id, scope, title, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.Scope, s.Title, s.Payload, s.Status).Scan(&s.CreatedAt)
}

func (r *SeedRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RegressionSeed, error) {
	var s models.RegressionSeed
	err := r.pool.QueryRow(ctx,
		`SELECT `+seedColumns+` FROM regression_seeds WHERE id = $1`, id,
	).Scan(&s.ID, &s.Scope, &s.Title, &s.Payload, &s.Status, &s.ReviewedBy, &s.ReviewedAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SeedRepo) Update(ctx context.Context, s *models.RegressionSeed) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE regression_seeds
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1
	`, s.ID, s.Status, s.ReviewedBy, s.ReviewedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *SeedRepo) List(ctx context.Context, scope string, status *string, limit, offset int) ([]models.RegressionSeed, error) {
	query := `SELECT ` + seedColumns + ` FROM regression_seeds WHERE scope = $1`
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

	var seeds []models.RegressionSeed
	for rows.Next() {
		var s models.RegressionSeed
		if err := rows.Scan(&s.ID, &s.Scope, &s.Title, &s.Payload, &s.Status, &s.ReviewedBy, &s.ReviewedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		seeds = append(seeds, s)
	}
	return seeds, rows.Err()
}
