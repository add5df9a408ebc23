package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuestionKind decides the payload shape a question accepts.
type QuestionKind string

const (
	KindFreeText     QuestionKind = "free_text"
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
)

// IsChoice reports whether answers reference the question's choice labels.
func (k QuestionKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

// Phase is the state of an activity's current question.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseOpen   Phase = "open"
	PhaseClosed Phase = "closed"
)

// ActivityStatus is the persisted lifecycle of an activity record.
type ActivityStatus string

const (
	StatusPreparing ActivityStatus = "preparing"
	StatusActive    ActivityStatus = "active"
	StatusEnded     ActivityStatus = "ended"
)

// Role identifies what kind of client holds a subscription.
type Role string

const (
	RoleOperator    Role = "operator"
	RoleDisplay     Role = "display"
	RoleParticipant Role = "participant"
)

// ParseRole validates a role coming from a client.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleOperator, RoleDisplay, RoleParticipant:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

// Question is an entry of the question bank.
type Question struct {
	ID        string       `json:"id"`
	Prompt    string       `json:"prompt"`
	Kind      QuestionKind `json:"kind"`
	Choices   []string     `json:"choices,omitempty"`
	TimeLimit int          `json:"timeLimit"` // seconds
	Correct   []int        `json:"correct,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Validate checks the question is usable in an activity.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if q.TimeLimit < 0 {
		return fmt.Errorf("%w: time limit must not be negative", ErrInvalidInput)
	}
	switch q.Kind {
	case KindFreeText:
		if len(q.Choices) > 0 {
			return fmt.Errorf("%w: free text questions take no choices", ErrInvalidInput)
		}
		return nil
	case KindSingleChoice, KindMultiChoice:
	default:
		return fmt.Errorf("%w: unknown question kind %q", ErrInvalidInput, q.Kind)
	}

	if len(q.Choices) < 2 {
		return fmt.Errorf("%w: choice questions need at least two choices", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(q.Choices))
	for _, label := range q.Choices {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("%w: empty choice label", ErrInvalidInput)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate choice %q", ErrInvalidInput, label)
		}
		seen[label] = struct{}{}
	}
	for _, idx := range q.Correct {
		if idx < 0 || idx >= len(q.Choices) {
			return fmt.Errorf("%w: correct index %d out of range", ErrInvalidInput, idx)
		}
	}
	return nil
}

// Duration is the question's default answer window.
func (q Question) Duration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

// Public strips answer-revealing fields before a question leaves the server.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:        q.ID,
		Prompt:    q.Prompt,
		Kind:      q.Kind,
		Choices:   append([]string(nil), q.Choices...),
		TimeLimit: q.TimeLimit,
	}
}

// PublicQuestion is the question as shown to participants and the display.
type PublicQuestion struct {
	ID        string       `json:"id"`
	Prompt    string       `json:"prompt"`
	Kind      QuestionKind `json:"kind"`
	Choices   []string     `json:"choices,omitempty"`
	TimeLimit int          `json:"timeLimit"`
}

// Activity is one quiz session over an ordered sequence of questions.
type Activity struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	QuestionIDs []string       `json:"questionIds"`
	Groups      []string       `json:"groups,omitempty"`
	Status      ActivityStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
}

// NewActivity is the input for creating an activity.
type NewActivity struct {
	Name        string   `json:"name"`
	QuestionIDs []string `json:"questionIds"`
	Groups      []string `json:"groups,omitempty"`
	GroupsCount int      `json:"groupsCount,omitempty"`
}

// Validate checks the request and fills generated group names.
func (n *NewActivity) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: activity name is required", ErrInvalidInput)
	}
	if len(n.QuestionIDs) == 0 {
		return fmt.Errorf("%w: activity needs at least one question", ErrInvalidInput)
	}
	if n.GroupsCount < 0 {
		return fmt.Errorf("%w: groups count must not be negative", ErrInvalidInput)
	}
	if len(n.Groups) == 0 && n.GroupsCount > 0 {
		n.Groups = DefaultGroupNames(n.GroupsCount)
	}
	return nil
}

// DefaultGroupNames generates "Group 1".."Group n".
func DefaultGroupNames(n int) []string {
	groups := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		groups = append(groups, fmt.Sprintf("Group %d", i))
	}
	return groups
}

// Participant is someone who joined an activity by name.
type Participant struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activityId"`
	Name       string    `json:"name"`
	Group      string    `json:"group,omitempty"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// AnswerPayload carries either free text or selected choice indexes.
type AnswerPayload struct {
	Text    string `json:"text,omitempty"`
	Choices []int  `json:"choices,omitempty"`
}

// Answer is one participant's response to one question instance.
type Answer struct {
	ActivityID    string        `json:"activityId"`
	QuestionID    string        `json:"questionId"`
	ParticipantID string        `json:"participantId"`
	Payload       AnswerPayload `json:"payload"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	Accepted      bool          `json:"accepted"`
}

// GroupStats aggregates one group of participants for the current question.
type GroupStats struct {
	Members int `json:"members"`
	Answers int `json:"answers"`
}

// Stats is the live aggregate of an activity's current question.
type Stats struct {
	ParticipantsJoined int                   `json:"participantsJoined"`
	AnswersReceived    int                   `json:"answersReceived"`
	PerChoiceTally     map[string]int        `json:"perChoiceTally,omitempty"`
	PerGroup           map[string]GroupStats `json:"perGroup,omitempty"`
}
