package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

const (
	writeWait        = 10 * time.Second
	closeGracePeriod = 5 * time.Second
)

type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
}

// NewWSHandler builds the stream handler. checkOrigin may be nil to accept any origin.
func NewWSHandler(service *app.Service, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerMessage struct {
	QuestionID string `json:"questionId"`
	domain.AnswerPayload
}

type openMessage struct {
	QuestionID      string `json:"questionId"`
	DurationSeconds int    `json:"durationSeconds"`
}

type projectMessage struct {
	ParticipantID string `json:"participantId"`
}

type ackPayload struct {
	Command string `json:"command"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// closeFrame tells the writer to send a close frame and stop.
type closeFrame struct{}

// ServeWS streams an activity's events to one client. The first message is
// always a snapshot. Participants send "answer" messages; operators send the
// session commands.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	query := r.URL.Query()
	activityID := query.Get("activityId")
	participantID := query.Get("participantId")
	role, err := domain.ParseRole(query.Get("role"))
	if err == nil && activityID == "" {
		err = errors.New("missing activityId")
	}
	if err == nil && role == domain.RoleParticipant && participantID == "" {
		err = errors.New("missing participantId")
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), activityID, role, participantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := make(chan any, 16)
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	push := func(msg any) {
		select {
		case send <- msg:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if _, ok := msg.(closeFrame); ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.SetReadDeadline(time.Now().Add(closeGracePeriod))
				cancel()
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Str("activity_id", activityID).Msg("ws write error")
				cancel()
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			event, err := sub.Next(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrSubscriberLagging) {
					push(errorMessage(err))
				}
				if ctx.Err() == nil {
					push(closeFrame{})
				}
				return
			}
			push(event)
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		push(h.handle(r.Context(), activityID, role, participantID, inbound))
	}

	cancel()
	sub.Close()
	<-eventsDone
	close(send)
	<-writerDone
	logger.Debug().
		Str("activity_id", activityID).
		Str("role", string(sub.Role())).
		Msg("ws client disconnected")
}

// handle runs one client message and returns the direct reply to it.
func (h *WSHandler) handle(ctx context.Context, activityID string, role domain.Role, participantID string, in inboundMessage) outboundMessage[any] {
	switch {
	case in.Type == "answer" && role == domain.RoleParticipant:
		var msg answerMessage
		if err := json.Unmarshal(in.Payload, &msg); err != nil {
			return errorMessage(domain.ErrInvalidInput)
		}
		result := h.service.Submit(ctx, activityID, participantID, msg.QuestionID, msg.AnswerPayload)
		return outboundMessage[any]{Type: "answer_result", Payload: result}
	case role == domain.RoleOperator:
		if err := h.command(ctx, activityID, in); err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "ack", Payload: ackPayload{Command: in.Type}}
	}
	return errorMessage(errUnsupportedMessage)
}

var errUnsupportedMessage = errors.New("unsupported message type")

func (h *WSHandler) command(ctx context.Context, activityID string, in inboundMessage) error {
	switch in.Type {
	case "open_question":
		var msg openMessage
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &msg); err != nil {
				return domain.ErrInvalidInput
			}
		}
		if msg.DurationSeconds < 0 {
			return domain.ErrInvalidDuration
		}
		_, err := h.service.OpenQuestion(ctx, activityID, msg.QuestionID, time.Duration(msg.DurationSeconds)*time.Second)
		return err
	case "close_question":
		_, err := h.service.CloseQuestion(ctx, activityID)
		return err
	case "advance":
		_, err := h.service.Advance(ctx, activityID)
		return err
	case "end_activity":
		return h.service.EndActivity(ctx, activityID)
	case "project_answer":
		var msg projectMessage
		if err := json.Unmarshal(in.Payload, &msg); err != nil {
			return domain.ErrInvalidInput
		}
		return h.service.ProjectAnswer(ctx, activityID, msg.ParticipantID)
	case "set_display":
		var msg domain.DisplayState
		if err := json.Unmarshal(in.Payload, &msg); err != nil {
			return domain.ErrInvalidInput
		}
		return h.service.SetDisplay(ctx, activityID, msg)
	}
	return errUnsupportedMessage
}

func errorMessage(err error) outboundMessage[any] {
	code := "unsupported"
	if !errors.Is(err, errUnsupportedMessage) {
		_, code = errorCode(err)
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Error: err.Error(), Code: code}}
}
