package memory

import (
	"sort"
	"sync"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	newOrchestrator app.OrchestratorFactory

	mu       sync.RWMutex
	sessions map[string]*app.Orchestrator
}

func NewSessionRegistry(factory app.OrchestratorFactory) *SessionRegistry {
	return &SessionRegistry{
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
	delete(r.sessions, activityID)
}

// List returns the live orchestrators ordered by activity id.
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
