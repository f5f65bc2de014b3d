package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artisansflow/portal/internal/domain"
)

// ActivityRepository records sign-ins for the admin overview.
type ActivityRepository interface {
	Record(ctx context.Context, userID string, at time.Time) error
	Count(ctx context.Context) (int64, error)
	DailyCounts(ctx context.Context, since time.Time) ([]domain.ActivityDay, error)
}

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns a Postgres-backed implementation.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Record(ctx context.Context, userID string, at time.Time) error {
	const query = `INSERT INTO user_activity (user_id, created_at) VALUES ($1, $2)`
	_, err := r.pool.Exec(ctx, query, userID, at.UTC())
	return err
}

func (r *activityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_activity`).Scan(&count)
	return count, err
}

func (r *activityRepository) DailyCounts(ctx context.Context, since time.Time) ([]domain.ActivityDay, error) {
	const query = `
        SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*)
        FROM user_activity
        WHERE created_at >= $1
        GROUP BY day
        ORDER BY day`

	rows, err := r.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []domain.ActivityDay
	for rows.Next() {
		var day domain.ActivityDay
		if err := rows.Scan(&day.Day, &day.Count); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}
