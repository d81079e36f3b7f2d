package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/services"
)

type PrincipalRepo struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepo(pool *pgxpool.Pool) *PrincipalRepo {
	return &PrincipalRepo{pool: pool}
}

func (r *PrincipalRepo) Create(ctx context.Context, p *models.Principal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO principals (id, email, password_hash, role, overrides, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, p.PasswordHash, p.Role, p.Overrides, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
}

const principalColumns = `id, email, password_hash, role, overrides, status, created_at, updated_at`

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.Overrides, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PrincipalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	return scanPrincipal(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM principals WHERE id = $1`, principalColumns), id))
}

func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return scanPrincipal(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM principals WHERE email = $1`, principalColumns), email))
}

func (r *PrincipalRepo) Update(ctx context.Context, p *models.Principal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principals
		SET role = $2, overrides = $3, status = $4, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Role, p.Overrides, p.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM principals`).Scan(&n)
	return n, err
}

func (r *PrincipalRepo) List(ctx context.Context, limit, offset int) ([]models.Principal, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM principals
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, principalColumns), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var principals []models.Principal
	for rows.Next() {
		var p models.Principal
		if err := rows.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.Overrides, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}
