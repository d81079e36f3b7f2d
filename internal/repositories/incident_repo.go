package repositories

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/services"
)

// IncidentRepo is read-only: policy incidents are written by the policy
// engine outside this core.
type IncidentRepo struct {
	pool *pgxpool.Pool
}

func NewIncidentRepo(pool *pgxpool.Pool) *IncidentRepo {
	return &IncidentRepo{pool: pool}
}

func (r *IncidentRepo) List(ctx context.Context, scope string, f services.IncidentFilter) ([]models.PolicyIncident, error) {
	query := `
		SELECT id, scope, session_id, kind, severity, detail, created_at
		FROM policy_incidents WHERE scope = $1`
	args := []any{scope}

	if f.SessionID != nil {
		args = append(args, *f.SessionID)
		query += ` AND session_id = $` + strconv.Itoa(len(args))
	}
	if f.Severity != nil {
		args = append(args, *f.Severity)
		query += ` AND severity = $` + strconv.Itoa(len(args))
	}
	args = append(args, f.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []models.PolicyIncident
	for rows.Next() {
		var i models.PolicyIncident
		if err := rows.Scan(&i.ID, &i.Scope, &i.SessionID, &i.Kind, &i.Severity, &i.Detail, &i.CreatedAt); err != nil {
			return nil, err
		}
		incidents = append(incidents, i)
	}
	return incidents, rows.Err()
}
