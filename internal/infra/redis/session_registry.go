package redis

import (
	"context"
	"sort"
	"sync"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Orchestrators stay in a local map since live state is per process; Redis
// only carries a liveness marker per running activity so other tooling can
// see which activities are live. The marker has no expiry and lives until
// Delete.
type SessionRegistry struct {
	client          *redis.Client
	newOrchestrator app.OrchestratorFactory

	mu       sync.RWMutex
	sessions map[string]*app.Orchestrator
}

func NewSessionRegistry(client *redis.Client, factory app.OrchestratorFactory) *SessionRegistry {
	return &SessionRegistry{
		client:          client,
		newOrchestrator: factory,
		sessions:        make(map[string]*app.Orchestrator),
	}
}

func (r *SessionRegistry) Create(activity domain.Activity) (*app.Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[activity.ID]; ok {
		return nil, domain.ErrActivityExists
	}
	o := r.newOrchestrator(activity)
	r.sessions[activity.ID] = o
	// best-effort liveness marker
	if err := r.client.Set(context.Background(), liveKey(activity.ID), activity.Name, 0).Err(); err != nil {
		log.Warn().Err(err).Str("activity_id", activity.ID).Msg("mark activity live")
	}
	return o, nil
}

func (r *SessionRegistry) Get(activityID string) (*app.Orchestrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[activityID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	return o, nil
}

func (r *SessionRegistry) Delete(activityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[activityID]; !ok {
		return
	}
	delete(r.sessions, activityID)
	if err := r.client.Del(context.Background(), liveKey(activityID)).Err(); err != nil {
		log.Warn().Err(err).Str("activity_id", activityID).Msg("clear activity liveness")
	}
}

func (r *SessionRegistry) List() []*app.Orchestrator {
	r.mu.RLock()
	out := make([]*app.Orchestrator, 0, len(r.sessions))
	for _, o := range r.sessions {
		out = append(out, o)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func liveKey(activityID string) string {
	return "livequiz:activity:" + activityID
}
