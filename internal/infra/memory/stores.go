package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/google/uuid"
)

// ActivityStore keeps activity records in memory.
type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{activities: make(map[string]domain.Activity)}
}

func (s *ActivityStore) CreateActivity(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[activity.ID]; ok {
		return domain.ErrActivityExists
	}
	s.activities[activity.ID] = activity
	return nil
}

func (s *ActivityStore) GetActivity(_ context.Context, activityID string) (domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[activityID]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	return activity, nil
}

// ListActivities returns activities newest first.
func (s *ActivityStore) ListActivities(_ context.Context) ([]domain.Activity, error) {
	s.mu.RLock()
	out := make([]domain.Activity, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateActivityStatus records a status change. StartedAt is set on the first
// transition to active and EndedAt on the transition to ended.
func (s *ActivityStore) UpdateActivityStatus(_ context.Context, activityID string, status domain.ActivityStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[activityID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	activity.Status = status
	switch status {
	case domain.StatusActive:
		if activity.StartedAt == nil {
			activity.StartedAt = &at
		}
	case domain.StatusEnded:
		activity.EndedAt = &at
	}
	s.activities[activityID] = activity
	return nil
}

func (s *ActivityStore) DeleteActivity(_ context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[activityID]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(s.activities, activityID)
	return nil
}

// ParticipantStore keeps joined participants in memory.
type ParticipantStore struct {
	clock func() time.Time

	mu           sync.RWMutex
	participants map[string]domain.Participant
}

func NewParticipantStore(clock func() time.Time) *ParticipantStore {
	if clock == nil {
		clock = time.Now
	}
	return &ParticipantStore{
		clock:        clock,
		participants: make(map[string]domain.Participant),
	}
}

func (s *ParticipantStore) CreateParticipant(_ context.Context, activityID, name, group string) (domain.Participant, error) {
	p := domain.Participant{
		ID:         uuid.NewString(),
		ActivityID: activityID,
		Name:       name,
		Group:      group,
		JoinedAt:   s.clock(),
	}
	s.mu.Lock()
	s.participants[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

func (s *ParticipantStore) GetParticipant(_ context.Context, participantID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *ParticipantStore) DeleteParticipant(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}
	delete(s.participants, participantID)
	return nil
}

// AnswerLog is an append-only in-memory answer log.
type AnswerLog struct {
	mu      sync.RWMutex
	answers []domain.Answer
}

func NewAnswerLog() *AnswerLog {
	return &AnswerLog{}
}

func (l *AnswerLog) AppendAnswer(_ context.Context, answer domain.Answer) error {
	l.mu.Lock()
	l.answers = append(l.answers, answer)
	l.mu.Unlock()
	return nil
}

// Answers returns the logged answers of one activity in append order.
func (l *AnswerLog) Answers(_ context.Context, activityID string) ([]domain.Answer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Answer
	for _, a := range l.answers {
		if a.ActivityID == activityID {
			out = append(out, a)
		}
	}
	return out, nil
}
