package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// QuestionRepository is the question bank (cache in front of a backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, question domain.Question) error
	UpdateQuestion(ctx context.Context, question domain.Question) error
	DeleteQuestion(ctx context.Context, questionID string) error
}

// ActivityStore persists activity records outside the live session.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity domain.Activity) error
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
	ListActivities(ctx context.Context) ([]domain.Activity, error)
	UpdateActivityStatus(ctx context.Context, activityID string, status domain.ActivityStatus, at time.Time) error
	DeleteActivity(ctx context.Context, activityID string) error
}

// ParticipantStore records who joined an activity.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, activityID, name, group string) (domain.Participant, error)
	GetParticipant(ctx context.Context, participantID string) (domain.Participant, error)
	DeleteParticipant(ctx context.Context, participantID string) error
}

// AnswerLog is the durable record of accepted answers. It is written after
// admission and never consulted by it.
type AnswerLog interface {
	AppendAnswer(ctx context.Context, answer domain.Answer) error
	Answers(ctx context.Context, activityID string) ([]domain.Answer, error)
}

// AnswerFilter narrows the answer history. Empty fields match everything.
type AnswerFilter struct {
	QuestionID    string
	ParticipantID string
}

func (f AnswerFilter) match(a domain.Answer) bool {
	return (f.QuestionID == "" || a.QuestionID == f.QuestionID) &&
		(f.ParticipantID == "" || a.ParticipantID == f.ParticipantID)
}

// Dependencies wires a Service.
type Dependencies struct {
	Questions       QuestionRepository
	Activities      ActivityStore
	Participants    ParticipantStore
	Answers         AnswerLog
	Registry        SessionRegistry
	Clock           Clock
	DefaultDuration time.Duration
}

// Service contains the live quiz use cases.
type Service struct {
	questions       QuestionRepository
	activities      ActivityStore
	participants    ParticipantStore
	answers         AnswerLog
	registry        SessionRegistry
	admitter        *Admitter
	clock           Clock
	defaultDuration time.Duration
}

func NewService(deps Dependencies) *Service {
	return &Service{
		questions:       deps.Questions,
		activities:      deps.Activities,
		participants:    deps.Participants,
		answers:         deps.Answers,
		registry:        deps.Registry,
		admitter:        NewAdmitter(deps.Registry),
		clock:           deps.Clock,
		defaultDuration: deps.DefaultDuration,
	}
}

// ActivityView is a stored activity plus its live state, if it is running.
type ActivityView struct {
	domain.Activity
	Live        *domain.Snapshot `json:"live,omitempty"`
	Subscribers int              `json:"subscribers"`
}

// CreateQuestion validates and stores a new question.
func (s *Service) CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	question.ID = uuid.NewString()
	question.CreatedAt = s.clock.Now()
	if err := s.questions.CreateQuestion(ctx, question); err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	return question, nil
}

func (s *Service) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return s.questions.GetQuestion(ctx, questionID)
}

func (s *Service) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.questions.ListQuestions(ctx)
}

// UpdateQuestion replaces a question's content. Its id and creation time are
// kept, and a question a live activity is showing cannot change.
func (s *Service) UpdateQuestion(ctx context.Context, questionID string, question domain.Question) (domain.Question, error) {
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	if s.questionShown(questionID) {
		return domain.Question{}, domain.ErrQuestionInUse
	}
	current, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	question.ID = current.ID
	question.CreatedAt = current.CreatedAt
	if err := s.questions.UpdateQuestion(ctx, question); err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	return question, nil
}

// DeleteQuestion refuses to delete a question a live activity is showing.
func (s *Service) DeleteQuestion(ctx context.Context, questionID string) error {
	if s.questionShown(questionID) {
		return domain.ErrQuestionInUse
	}
	return s.questions.DeleteQuestion(ctx, questionID)
}

func (s *Service) questionShown(questionID string) bool {
	for _, o := range s.registry.List() {
		if o.ShowsQuestion(questionID) {
			return true
		}
	}
	return false
}

// CreateActivity stores the activity and registers its live session.
func (s *Service) CreateActivity(ctx context.Context, req domain.NewActivity) (domain.Activity, error) {
	if err := req.Validate(); err != nil {
		return domain.Activity{}, err
	}
	for _, questionID := range req.QuestionIDs {
		if _, err := s.questions.GetQuestion(ctx, questionID); err != nil {
			return domain.Activity{}, fmt.Errorf("question %s: %w", questionID, err)
		}
	}

	activity := domain.Activity{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		QuestionIDs: slices.Clone(req.QuestionIDs),
		Groups:      slices.Clone(req.Groups),
		Status:      domain.StatusPreparing,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.activities.CreateActivity(ctx, activity); err != nil {
		return domain.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	if _, err := s.registry.Create(activity); err != nil {
		if delErr := s.activities.DeleteActivity(ctx, activity.ID); delErr != nil {
			log.Error().Err(delErr).Str("activity_id", activity.ID).Msg("rollback activity record")
		}
		return domain.Activity{}, err
	}

	log.Info().
		Str("activity_id", activity.ID).
		Int("questions", len(activity.QuestionIDs)).
		Msg("activity created")
	return activity, nil
}

func (s *Service) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	return s.activities.ListActivities(ctx)
}

func (s *Service) GetActivity(ctx context.Context, activityID string) (ActivityView, error) {
	activity, err := s.activities.GetActivity(ctx, activityID)
	if err != nil {
		return ActivityView{}, err
	}
	view := ActivityView{Activity: activity}
	if o, err := s.registry.Get(activityID); err == nil {
		snap := o.Snapshot()
		view.Live = &snap
		view.Subscribers = o.SubscriberCount()
	}
	return view, nil
}

// Groups lists the group names participants can pick when joining.
func (s *Service) Groups(ctx context.Context, activityID string) ([]string, error) {
	activity, err := s.activities.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.Groups == nil {
		return []string{}, nil
	}
	return activity.Groups, nil
}

// Join registers a participant by name (and optional group) in a live activity.
func (s *Service) Join(ctx context.Context, activityID, name, group string) (domain.Participant, error) {
	name = strings.TrimSpace(name)
	group = strings.TrimSpace(group)
	if name == "" {
		return domain.Participant{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	o, err := s.registry.Get(activityID)
	if err != nil {
		return domain.Participant{}, err
	}
	if o.Ended() {
		return domain.Participant{}, domain.ErrActivityEnded
	}
	if groups := o.Activity().Groups; group != "" && len(groups) > 0 && !slices.Contains(groups, group) {
		return domain.Participant{}, fmt.Errorf("%w: unknown group %q", domain.ErrInvalidInput, group)
	}

	participant, err := s.participants.CreateParticipant(ctx, activityID, name, group)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("create participant: %w", err)
	}
	if err := o.AddParticipant(participant); err != nil {
		// the activity ended after the check above
		if delErr := s.participants.DeleteParticipant(ctx, participant.ID); delErr != nil {
			log.Error().Err(delErr).Str("participant_id", participant.ID).Msg("rollback participant record")
		}
		return domain.Participant{}, err
	}

	log.Debug().
		Str("activity_id", activityID).
		Str("participant_id", participant.ID).
		Msg("participant joined")
	return participant, nil
}

// Participant looks up a joined participant of the activity, for clients
// resuming after a reconnect.
func (s *Service) Participant(ctx context.Context, activityID, participantID string) (domain.Participant, error) {
	p, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	if p.ActivityID != activityID {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

// OpenQuestion opens questionID (or the current question when empty). A zero
// duration falls back to the question's time limit, then to the service default.
func (s *Service) OpenQuestion(ctx context.Context, activityID, questionID string, duration time.Duration) (domain.Snapshot, error) {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if questionID == "" {
		questionID = o.CurrentQuestionID()
	}
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if duration == 0 {
		duration = question.Duration()
	}
	if duration == 0 {
		duration = s.defaultDuration
	}

	if err := o.OpenQuestion(question, duration); err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.activities.UpdateActivityStatus(ctx, activityID, domain.StatusActive, s.clock.Now()); err != nil {
		log.Error().Err(err).Str("activity_id", activityID).Msg("mark activity active")
	}
	return o.Snapshot(), nil
}

func (s *Service) CloseQuestion(_ context.Context, activityID string) (domain.Snapshot, error) {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := o.CloseQuestion(); err != nil {
		return domain.Snapshot{}, err
	}
	return o.Snapshot(), nil
}

func (s *Service) Advance(_ context.Context, activityID string) (domain.Snapshot, error) {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := o.Advance(); err != nil {
		return domain.Snapshot{}, err
	}
	return o.Snapshot(), nil
}

func (s *Service) ProjectAnswer(_ context.Context, activityID, participantID string) error {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return err
	}
	return o.ProjectAnswer(participantID)
}

func (s *Service) SetDisplay(_ context.Context, activityID string, display domain.DisplayState) error {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return err
	}
	return o.SetDisplay(display)
}

// EndActivity ends the live session and removes it from the registry.
func (s *Service) EndActivity(ctx context.Context, activityID string) error {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return err
	}
	if err := o.End(); err != nil {
		return err
	}
	s.registry.Delete(activityID)
	if err := s.activities.UpdateActivityStatus(ctx, activityID, domain.StatusEnded, s.clock.Now()); err != nil {
		log.Error().Err(err).Str("activity_id", activityID).Msg("mark activity ended")
	}
	return nil
}

// DeleteActivity ends the activity if it is live and removes its record.
func (s *Service) DeleteActivity(ctx context.Context, activityID string) error {
	if err := s.EndActivity(ctx, activityID); err != nil &&
		!errors.Is(err, domain.ErrActivityNotFound) && !errors.Is(err, domain.ErrActivityEnded) {
		return err
	}
	return s.activities.DeleteActivity(ctx, activityID)
}

// Submit stamps the answer with the server clock and runs admission. Accepted
// answers are appended to the answer log; a log failure does not undo admission.
func (s *Service) Submit(ctx context.Context, activityID, participantID, questionID string, payload domain.AnswerPayload) domain.SubmitResult {
	submittedAt := s.clock.Now()
	result := s.admitter.Submit(activityID, participantID, questionID, payload, submittedAt)
	if !result.Accepted {
		log.Debug().
			Str("activity_id", activityID).
			Str("participant_id", participantID).
			Str("reason", string(result.Reason)).
			Msg("answer rejected")
		return result
	}

	answer := domain.Answer{
		ActivityID:    activityID,
		QuestionID:    questionID,
		ParticipantID: participantID,
		Payload:       normalizePayload(payload),
		SubmittedAt:   submittedAt,
		Accepted:      true,
	}
	if err := s.answers.AppendAnswer(ctx, answer); err != nil {
		log.Error().Err(err).
			Str("activity_id", activityID).
			Str("participant_id", participantID).
			Msg("append answer log")
	}
	return result
}

// Answers returns the logged answer history of an activity, live or ended,
// in submission order.
func (s *Service) Answers(ctx context.Context, activityID string, filter AnswerFilter) ([]domain.Answer, error) {
	if _, err := s.activities.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	logged, err := s.answers.Answers(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("read answer log: %w", err)
	}
	out := make([]domain.Answer, 0, len(logged))
	for _, a := range logged {
		if filter.match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Subscribe opens an event stream for a client. Participants must have joined.
func (s *Service) Subscribe(_ context.Context, activityID string, role domain.Role, participantID string) (*Subscription, error) {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleParticipant && !o.HasParticipant(participantID) {
		return nil, domain.ErrParticipantNotFound
	}
	return o.Subscribe(role)
}

func (s *Service) Snapshot(_ context.Context, activityID string) (domain.Snapshot, error) {
	o, err := s.registry.Get(activityID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return o.Snapshot(), nil
}

func (s *Service) Stats(ctx context.Context, activityID string) (domain.Stats, error) {
	snap, err := s.Snapshot(ctx, activityID)
	if err != nil {
		return domain.Stats{}, err
	}
	return snap.Stats, nil
}
