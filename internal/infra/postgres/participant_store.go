package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ParticipantStore persists joined participants.
type ParticipantStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewParticipantStore(pool *pgxpool.Pool, clock func() time.Time) *ParticipantStore {
	if clock == nil {
		clock = time.Now
	}
	return &ParticipantStore{pool: pool, clock: clock}
}

func (s *ParticipantStore) CreateParticipant(ctx context.Context, activityID, name, group string) (domain.Participant, error) {
	p := domain.Participant{
		ID:         uuid.NewString(),
		ActivityID: activityID,
		Name:       name,
		Group:      group,
		JoinedAt:   s.clock().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (id, activity_id, name, group_name, joined_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.ActivityID, p.Name, p.Group, p.JoinedAt)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("insert participant: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) GetParticipant(ctx context.Context, participantID string) (domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx,
		`SELECT id, activity_id, name, group_name, joined_at FROM participants WHERE id=$1`, participantID).
		Scan(&p.ID, &p.ActivityID, &p.Name, &p.Group, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load participant: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) DeleteParticipant(ctx context.Context, participantID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants WHERE id=$1`, participantID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}
