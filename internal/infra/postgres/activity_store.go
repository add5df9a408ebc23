package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ActivityStore persists activity records.
type ActivityStore struct {
	pool *pgxpool.Pool
}

func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const activityColumns = `id, name, question_ids, group_names, status, created_at, started_at, ended_at`

func (s *ActivityStore) CreateActivity(ctx context.Context, activity domain.Activity) error {
	groups := activity.Groups
	if groups == nil {
		groups = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		activity.ID, activity.Name, activity.QuestionIDs, groups, string(activity.Status),
		activity.CreatedAt, activity.StartedAt, activity.EndedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrActivityExists
	}
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=$1`, activityID)
	activity, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("load activity: %w", err)
	}
	return activity, nil
}

func (s *ActivityStore) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	activities := []domain.Activity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

func (s *ActivityStore) UpdateActivityStatus(ctx context.Context, activityID string, status domain.ActivityStatus, at time.Time) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	switch status {
	case domain.StatusActive:
		tag, err = s.pool.Exec(ctx,
			`UPDATE activities SET status=$2, started_at=COALESCE(started_at, $3) WHERE id=$1`,
			activityID, string(status), at)
	case domain.StatusEnded:
		tag, err = s.pool.Exec(ctx,
			`UPDATE activities SET status=$2, ended_at=$3 WHERE id=$1`,
			activityID, string(status), at)
	default:
		tag, err = s.pool.Exec(ctx, `UPDATE activities SET status=$2 WHERE id=$1`, activityID, string(status))
	}
	if err != nil {
		return fmt.Errorf("update activity status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// DeleteActivity removes the activity; participants and answers cascade.
func (s *ActivityStore) DeleteActivity(ctx context.Context, activityID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM activities WHERE id=$1`, activityID)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a      domain.Activity
		status string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.QuestionIDs, &a.Groups, &status, &a.CreatedAt, &a.StartedAt, &a.EndedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Status = domain.ActivityStatus(status)
	if len(a.Groups) == 0 {
		a.Groups = nil
	}
	return a, nil
}
