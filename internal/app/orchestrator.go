package app

import (
	"sync"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Orchestrator owns the live state of one activity. Transitions, answer
// admission and deadline expiry all run under mu. Events produced under mu are
// parked in the outbox and published to the hub after mu is released.
type Orchestrator struct {
	id    string
	clock Clock
	hub   *Hub

	mu     sync.Mutex
	state  sessionState
	seq    uint64
	outbox []domain.Event
	timer  *deadlineTimer

	// flushMu keeps hub publish order identical to outbox order.
	flushMu sync.Mutex
	timers  sync.WaitGroup
}

type deadlineTimer struct {
	timer    clockwork.Timer
	stop     chan struct{}
	instance uint64
}

// OrchestratorFactory builds the orchestrator for a newly registered activity.
type OrchestratorFactory func(activity domain.Activity) *Orchestrator

func NewOrchestratorFactory(hub *Hub, clock Clock) OrchestratorFactory {
	return func(activity domain.Activity) *Orchestrator {
		return NewOrchestrator(activity, hub, clock)
	}
}

func NewOrchestrator(activity domain.Activity, hub *Hub, clock Clock) *Orchestrator {
	invariant(len(activity.QuestionIDs) > 0, "activity without questions")
	return &Orchestrator{
		id:    activity.ID,
		clock: clock,
		hub:   hub,
		state: newSessionState(activity),
	}
}

func (o *Orchestrator) ID() string {
	return o.id
}

// Activity returns the activity definition the orchestrator was created with.
func (o *Orchestrator) Activity() domain.Activity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.activity
}

// CurrentQuestionID is the question at the current position, open or not.
func (o *Orchestrator) CurrentQuestionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.currentQuestionID()
}

// ShowsQuestion reports whether questionID is the question currently on screen.
func (o *Orchestrator) ShowsQuestion(questionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.state.ended && o.state.question != nil && o.state.question.ID == questionID
}

func (o *Orchestrator) Ended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.ended
}

// SubscriberCount is the number of clients currently streaming this activity.
func (o *Orchestrator) SubscriberCount() int {
	return o.hub.SubscriberCount(o.id)
}

func (o *Orchestrator) HasParticipant(participantID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.state.participants[participantID]
	return ok
}

func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.snapshot(o.clock.Now())
}

// Subscribe starts a stream at the current state. The snapshot and the hub
// registration happen under the same lock, so the subscriber neither misses
// nor repeats an event relative to its snapshot.
func (o *Orchestrator) Subscribe(role domain.Role) (*Subscription, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.ended {
		return nil, domain.ErrActivityEnded
	}
	now := o.clock.Now()
	snapshot := domain.Event{
		Type:       domain.EventSnapshot,
		ActivityID: o.id,
		Seq:        o.seq,
		At:         now,
		Payload:    o.state.snapshot(now),
	}
	return o.hub.Subscribe(o.id, role, snapshot), nil
}

// AddParticipant makes a joined participant eligible to answer.
func (o *Orchestrator) AddParticipant(p domain.Participant) error {
	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	if _, ok := o.state.participants[p.ID]; ok {
		o.mu.Unlock()
		return nil
	}
	o.state.participants[p.ID] = p
	o.emitStatsLocked()
	o.mu.Unlock()

	o.flush()
	return nil
}

// OpenQuestion starts the answer window for question, which must belong to
// the activity. Allowed from idle or closed. Reopening a question keeps the
// answers it already accepted.
func (o *Orchestrator) OpenQuestion(question domain.Question, duration time.Duration) error {
	if duration <= 0 {
		return domain.ErrInvalidDuration
	}

	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	if o.state.phase == domain.PhaseOpen {
		o.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	idx := o.state.questionIndex(question.ID)
	if idx < 0 {
		o.mu.Unlock()
		return domain.ErrQuestionNotInActivity
	}

	now := o.clock.Now()
	deadline := now.Add(duration)
	invariant(deadline.After(now), "deadline not in the future")

	q := question
	o.state.position = idx
	o.state.question = &q
	o.state.phase = domain.PhaseOpen
	o.state.deadline = deadline
	o.state.instance++
	o.state.lastClosed = nil
	o.armTimerLocked(duration, o.state.instance)

	o.emitLocked(domain.EventQuestionOpened, domain.QuestionOpened{
		Question: q.Public(),
		Deadline: deadline,
		Position: idx,
	})
	o.emitStatsLocked()
	o.mu.Unlock()

	o.flush()
	log.Info().
		Str("activity_id", o.id).
		Str("question_id", question.ID).
		Time("deadline", deadline).
		Msg("question opened")
	return nil
}

// CloseQuestion ends the answer window now. Closing an already closed question
// re-emits the same question_closed event.
func (o *Orchestrator) CloseQuestion() error {
	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	switch o.state.phase {
	case domain.PhaseIdle:
		o.mu.Unlock()
		return domain.ErrInvalidTransition
	case domain.PhaseClosed:
		invariant(o.state.lastClosed != nil, "closed phase without close event")
		o.emitLocked(domain.EventQuestionClosed, *o.state.lastClosed)
	case domain.PhaseOpen:
		o.closeLocked(domain.CloseByOperator)
	}
	o.mu.Unlock()

	o.flush()
	return nil
}

// Advance moves to the next question in idle phase. An open question is
// closed first.
func (o *Orchestrator) Advance() error {
	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	if o.state.position+1 >= len(o.state.activity.QuestionIDs) {
		o.mu.Unlock()
		return domain.ErrNoMoreQuestions
	}
	if o.state.phase == domain.PhaseOpen {
		o.closeLocked(domain.CloseByOperator)
	}

	o.state.position++
	o.state.phase = domain.PhaseIdle
	o.state.question = nil
	o.state.deadline = time.Time{}
	o.state.lastClosed = nil

	o.emitLocked(domain.EventQuestionAdvanced, domain.QuestionAdvanced{
		Position:   o.state.position,
		QuestionID: o.state.activity.QuestionIDs[o.state.position],
		Phase:      domain.PhaseIdle,
	})
	o.emitStatsLocked()
	o.mu.Unlock()

	o.flush()
	return nil
}

// ProjectAnswer shows one accepted answer of the current question on the display.
func (o *Orchestrator) ProjectAnswer(participantID string) error {
	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	participant, ok := o.state.participants[participantID]
	if !ok {
		o.mu.Unlock()
		return domain.ErrParticipantNotFound
	}
	if o.state.question == nil {
		o.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	answer, ok := o.state.currentAnswers()[participantID]
	if !ok {
		o.mu.Unlock()
		return domain.ErrAnswerNotFound
	}
	o.emitLocked(domain.EventAnswerProjected, domain.AnswerProjected{
		QuestionID:      answer.QuestionID,
		ParticipantName: participant.Name,
		Group:           participant.Group,
		Payload:         answer.Payload,
	})
	o.mu.Unlock()

	o.flush()
	return nil
}

// SetDisplay switches what the projector shows. Allowed in any phase.
func (o *Orchestrator) SetDisplay(display domain.DisplayState) error {
	if err := display.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	o.state.display = display
	o.emitLocked(domain.EventDisplayChanged, display)
	o.mu.Unlock()

	o.flush()
	return nil
}

// End terminates the activity: the timer is cancelled, subscribers receive
// activity_ended and are closed, and every later call fails with ErrActivityEnded.
func (o *Orchestrator) End() error {
	o.mu.Lock()
	if o.state.ended {
		o.mu.Unlock()
		return domain.ErrActivityEnded
	}
	o.state.ended = true
	o.cancelTimerLocked()
	now := o.clock.Now()
	o.emitLocked(domain.EventActivityEnded, domain.ActivityEnded{EndedAt: now})
	o.mu.Unlock()

	o.flush()
	o.hub.CloseTopic(o.id)
	o.timers.Wait()
	log.Info().Str("activity_id", o.id).Msg("activity ended")
	return nil
}

func (o *Orchestrator) closeLocked(reason domain.CloseReason) {
	o.cancelTimerLocked()
	o.state.phase = domain.PhaseClosed
	closed := domain.QuestionClosed{
		QuestionID: o.state.question.ID,
		FinalStats: computeStats(&o.state),
		ClosedAt:   o.clock.Now(),
		Reason:     reason,
	}
	o.state.lastClosed = &closed
	o.emitLocked(domain.EventQuestionClosed, closed)
}

func (o *Orchestrator) armTimerLocked(d time.Duration, instance uint64) {
	o.cancelTimerLocked()
	dt := &deadlineTimer{
		timer:    o.clock.NewTimer(d),
		stop:     make(chan struct{}),
		instance: instance,
	}
	o.timer = dt
	o.timers.Add(1)
	go o.awaitDeadline(dt)
}

func (o *Orchestrator) cancelTimerLocked() {
	if o.timer == nil {
		return
	}
	close(o.timer.stop)
	stopAndDrainTimer(o.timer.timer)
	o.timer = nil
}

func (o *Orchestrator) awaitDeadline(dt *deadlineTimer) {
	defer o.timers.Done()
	select {
	case <-dt.timer.Chan():
		o.expire(dt.instance)
	case <-dt.stop:
	}
}

// expire is the timer's close. A question that was already closed, replaced
// or ended in the meantime makes this a no-op.
func (o *Orchestrator) expire(instance uint64) {
	o.mu.Lock()
	if o.state.ended || o.state.phase != domain.PhaseOpen || o.state.instance != instance {
		o.mu.Unlock()
		log.Debug().Str("activity_id", o.id).Msg("deadline timer fired after close")
		return
	}
	questionID := o.state.question.ID
	o.closeLocked(domain.CloseByDeadline)
	o.mu.Unlock()

	o.flush()
	log.Info().
		Str("activity_id", o.id).
		Str("question_id", questionID).
		Msg("question closed by deadline")
}

func (o *Orchestrator) emitStatsLocked() {
	update := domain.StatsUpdate{Stats: computeStats(&o.state)}
	if o.state.question != nil {
		update.QuestionID = o.state.question.ID
	}
	o.emitLocked(domain.EventStatsUpdate, update)
}

func (o *Orchestrator) emitLocked(eventType domain.EventType, payload any) {
	o.seq++
	o.outbox = append(o.outbox, domain.Event{
		Type:       eventType,
		ActivityID: o.id,
		Seq:        o.seq,
		At:         o.clock.Now(),
		Payload:    payload,
	})
}

// flush publishes everything parked in the outbox, in order, without holding mu.
func (o *Orchestrator) flush() {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	o.mu.Lock()
	events := o.outbox
	o.outbox = nil
	o.mu.Unlock()

	for _, event := range events {
		o.hub.Publish(o.id, event)
	}
}
