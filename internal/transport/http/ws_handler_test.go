package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/JT-427/LiveQuiz/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type testEnv struct {
	server  *httptest.Server
	service *app.Service
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	hub := app.NewHub(0)
	service := app.NewService(app.Dependencies{
		Questions:       memory.NewQuestionRepository(memory.NewStaticQuestionBank(nil), time.Minute),
		Activities:      memory.NewActivityStore(),
		Participants:    memory.NewParticipantStore(clock.Now),
		Answers:         memory.NewAnswerLog(),
		Registry:        memory.NewSessionRegistry(app.NewOrchestratorFactory(hub, clock)),
		Clock:           clock,
		DefaultDuration: 30 * time.Second,
	})

	mux := http.NewServeMux()
	NewAPIHandler(service).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testEnv{server: server, service: service, clock: clock}
}

// seedActivity creates a two-choice question, an activity over it and one participant.
func (e *testEnv) seedActivity(t *testing.T) (domain.Activity, domain.Question, domain.Participant) {
	t.Helper()
	ctx := context.Background()
	q, err := e.service.CreateQuestion(ctx, domain.Question{
		Prompt:  "Tabs or spaces?",
		Kind:    domain.KindSingleChoice,
		Choices: []string{"Tabs", "Spaces"},
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	activity, err := e.service.CreateActivity(ctx, domain.NewActivity{Name: "Team sync", QuestionIDs: []string{q.ID}})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	p, err := e.service.Join(ctx, activity.ID, "Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	return activity, q, p
}

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type wireMessage struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func readNext(conn *websocket.Conn, t *testing.T) wireMessage {
	t.Helper()
	var msg wireMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readUntil skips stream messages until one of type typ arrives.
func readUntil(conn *websocket.Conn, t *testing.T, typ string) wireMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := readNext(conn, t); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message received", typ)
	return wireMessage{}
}

func TestWebSocketAnswerFlow(t *testing.T) {
	env := newTestEnv(t)
	activity, q, p := env.seedActivity(t)

	display := env.dial(t, "activityId="+activity.ID+"&role=display")
	if msg := readNext(display, t); msg.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %s", msg.Type)
	}
	participant := env.dial(t, "activityId="+activity.ID+"&role=participant&participantId="+p.ID)
	if msg := readNext(participant, t); msg.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %s", msg.Type)
	}

	resp := env.post(t, "/api/activities/"+activity.ID+"/open", map[string]any{"questionId": q.ID, "durationSeconds": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open status %d", resp.StatusCode)
	}
	readUntil(participant, t, "question_opened")

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": q.ID, "choices": []int{1}},
	}
	if err := participant.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var result domain.SubmitResult
	if err := json.Unmarshal(readUntil(participant, t, "answer_result").Payload, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected accepted answer, got %+v", result)
	}

	if err := participant.WriteJSON(answer); err != nil {
		t.Fatalf("write duplicate: %v", err)
	}
	if err := json.Unmarshal(readUntil(participant, t, "answer_result").Payload, &result); err != nil {
		t.Fatalf("decode duplicate: %v", err)
	}
	if result.Accepted || result.Reason != domain.RejectDuplicateAnswer {
		t.Fatalf("expected duplicate rejection, got %+v", result)
	}

	// display sees the tally move
	for {
		msg := readUntil(display, t, "stats_update")
		var update domain.StatsUpdate
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		if update.Stats.AnswersReceived == 1 {
			if update.Stats.PerChoiceTally["Spaces"] != 1 {
				t.Fatalf("unexpected tally %v", update.Stats.PerChoiceTally)
			}
			break
		}
	}
}

func TestWebSocketOperatorCommands(t *testing.T) {
	env := newTestEnv(t)
	activity, q, _ := env.seedActivity(t)

	operator := env.dial(t, "activityId="+activity.ID+"&role=operator")
	readNext(operator, t)

	open := map[string]any{"type": "open_question", "payload": map[string]any{"questionId": q.ID}}
	if err := operator.WriteJSON(open); err != nil {
		t.Fatalf("write open: %v", err)
	}
	readUntil(operator, t, "ack")

	if err := operator.WriteJSON(open); err != nil {
		t.Fatalf("write second open: %v", err)
	}
	var errPayload errorPayload
	if err := json.Unmarshal(readUntil(operator, t, "error").Payload, &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errPayload.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %+v", errPayload)
	}

	if err := operator.WriteJSON(map[string]any{"type": "end_activity"}); err != nil {
		t.Fatalf("write end: %v", err)
	}
	readUntil(operator, t, "activity_ended")
}

func TestWebSocketSetDisplay(t *testing.T) {
	env := newTestEnv(t)
	activity, _, _ := env.seedActivity(t)

	display := env.dial(t, "activityId="+activity.ID+"&role=display")
	var snap domain.Snapshot
	if err := json.Unmarshal(readNext(display, t).Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Display.Mode != domain.DisplayNone {
		t.Fatalf("expected display off initially, got %+v", snap.Display)
	}
	operator := env.dial(t, "activityId="+activity.ID+"&role=operator")
	readNext(operator, t)

	cmd := map[string]any{"type": "set_display", "payload": map[string]any{"mode": "stats", "statsLimit": 5}}
	if err := operator.WriteJSON(cmd); err != nil {
		t.Fatalf("write set_display: %v", err)
	}
	readUntil(operator, t, "ack")

	var changed domain.DisplayState
	if err := json.Unmarshal(readUntil(display, t, "display_mode_changed").Payload, &changed); err != nil {
		t.Fatalf("decode display change: %v", err)
	}
	if changed.Mode != domain.DisplayStats || changed.StatsLimit != 5 {
		t.Fatalf("unexpected display change %+v", changed)
	}

	bad := map[string]any{"type": "set_display", "payload": map[string]any{"mode": "fireworks"}}
	if err := operator.WriteJSON(bad); err != nil {
		t.Fatalf("write bad set_display: %v", err)
	}
	var errPayload errorPayload
	if err := json.Unmarshal(readUntil(operator, t, "error").Payload, &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errPayload.Code != "invalid_input" {
		t.Fatalf("expected invalid_input, got %+v", errPayload)
	}
}

func TestWebSocketRejectsUnknownActivity(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?activityId=missing&role=display"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}
