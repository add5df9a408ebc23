package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
)

func TestAPIOperatorErrors(t *testing.T) {
	env := newTestEnv(t)
	activity, q, _ := env.seedActivity(t)

	resp := env.post(t, "/api/activities/"+activity.ID+"/close", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("close while idle: expected 409, got %d", resp.StatusCode)
	}

	resp = env.post(t, "/api/activities/"+activity.ID+"/advance", nil)
	var body errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusConflict || body.Code != "no_more_questions" {
		t.Fatalf("advance at last: got %d %+v", resp.StatusCode, body)
	}

	resp = env.post(t, "/api/activities/"+activity.ID+"/open", map[string]any{"questionId": q.ID, "durationSeconds": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: got %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/api/questions/"+q.ID, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete question: %v", err)
	}
	defer del.Body.Close()
	if del.StatusCode != http.StatusConflict {
		t.Fatalf("delete in-use question: expected 409, got %d", del.StatusCode)
	}

	resp = env.post(t, "/api/activities/missing/open", map[string]any{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown activity: expected 404, got %d", resp.StatusCode)
	}
}

func TestAPISubmitReportsRejection(t *testing.T) {
	env := newTestEnv(t)
	activity, q, p := env.seedActivity(t)

	resp := env.post(t, "/api/activities/"+activity.ID+"/answers", map[string]any{
		"participantId": p.ID,
		"questionId":    q.ID,
		"choices":       []int{0},
	})
	var result domain.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Accepted || result.Reason != domain.RejectQuestionMismatch {
		t.Fatalf("expected question_mismatch before open, got %+v", result)
	}
}

func TestAPIJoinValidatesGroup(t *testing.T) {
	env := newTestEnv(t)
	_, q, _ := env.seedActivity(t)

	resp := env.post(t, "/api/activities", map[string]any{
		"name":        "Grouped",
		"questionIds": []string{q.ID},
		"groupsCount": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create activity: got %d", resp.StatusCode)
	}
	var activity domain.Activity
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(activity.Groups) != 2 || activity.Groups[1] != "Group 2" {
		t.Fatalf("unexpected groups %v", activity.Groups)
	}

	resp = env.post(t, "/api/activities/"+activity.ID+"/participants", map[string]any{"name": "Bob", "group": "Group 9"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown group: expected 400, got %d", resp.StatusCode)
	}
	resp = env.post(t, "/api/activities/"+activity.ID+"/participants", map[string]any{"name": "Bob", "group": "Group 2"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join: expected 201, got %d", resp.StatusCode)
	}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) put(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, e.server.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIQuestionListAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	activity, q, _ := env.seedActivity(t)

	var list []domain.Question
	if err := json.NewDecoder(env.get(t, "/api/questions").Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != q.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	update := map[string]any{"prompt": "Tabs, spaces or both?", "kind": "multi_choice", "choices": []string{"Tabs", "Spaces"}}
	resp := env.put(t, "/api/questions/"+q.ID, update)
	var updated domain.Question
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if resp.StatusCode != http.StatusOK || updated.ID != q.ID || updated.Kind != domain.KindMultiChoice || !updated.CreatedAt.Equal(q.CreatedAt) {
		t.Fatalf("unexpected update %d %+v", resp.StatusCode, updated)
	}

	if resp := env.put(t, "/api/questions/missing", update); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update unknown question: expected 404, got %d", resp.StatusCode)
	}
	if resp := env.put(t, "/api/questions/"+q.ID, map[string]any{"prompt": "", "kind": "free_text"}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid update: expected 400, got %d", resp.StatusCode)
	}

	if resp := env.post(t, "/api/activities/"+activity.ID+"/open", map[string]any{"durationSeconds": 10}); resp.StatusCode != http.StatusOK {
		t.Fatalf("open: got %d", resp.StatusCode)
	}
	if resp := env.put(t, "/api/questions/"+q.ID, update); resp.StatusCode != http.StatusConflict {
		t.Fatalf("update shown question: expected 409, got %d", resp.StatusCode)
	}
}

func TestAPIAnswerHistory(t *testing.T) {
	env := newTestEnv(t)
	activity, q, alice := env.seedActivity(t)
	bob := env.post(t, "/api/activities/"+activity.ID+"/participants", map[string]any{"name": "Bob"})
	var bobP domain.Participant
	if err := json.NewDecoder(bob.Body).Decode(&bobP); err != nil {
		t.Fatalf("decode participant: %v", err)
	}

	if resp := env.post(t, "/api/activities/"+activity.ID+"/open", map[string]any{"durationSeconds": 10}); resp.StatusCode != http.StatusOK {
		t.Fatalf("open: got %d", resp.StatusCode)
	}
	for i, id := range []string{alice.ID, bobP.ID} {
		env.post(t, "/api/activities/"+activity.ID+"/answers", map[string]any{
			"participantId": id,
			"questionId":    q.ID,
			"choices":       []int{i},
		})
	}
	if resp := env.post(t, "/api/activities/"+activity.ID+"/end", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("end: got %d", resp.StatusCode)
	}

	// history outlives the live session
	var all []domain.Answer
	if err := json.NewDecoder(env.get(t, "/api/activities/"+activity.ID+"/answers").Body).Decode(&all); err != nil {
		t.Fatalf("decode answers: %v", err)
	}
	if len(all) != 2 || all[0].ParticipantID != alice.ID {
		t.Fatalf("unexpected history %+v", all)
	}

	var filtered []domain.Answer
	path := "/api/activities/" + activity.ID + "/answers?questionId=" + q.ID + "&participantId=" + bobP.ID
	if err := json.NewDecoder(env.get(t, path).Body).Decode(&filtered); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Payload.Choices[0] != 1 {
		t.Fatalf("unexpected filtered history %+v", filtered)
	}

	if resp := env.get(t, "/api/activities/missing/answers"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown activity: expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIParticipantLookup(t *testing.T) {
	env := newTestEnv(t)
	activity, _, alice := env.seedActivity(t)

	var got domain.Participant
	if err := json.NewDecoder(env.get(t, "/api/activities/"+activity.ID+"/participants/"+alice.ID).Body).Decode(&got); err != nil {
		t.Fatalf("decode participant: %v", err)
	}
	if got.Name != "Alice" {
		t.Fatalf("unexpected participant %+v", got)
	}
	if resp := env.get(t, "/api/activities/other/participants/"+alice.ID); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("participant of another activity: expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIDisplay(t *testing.T) {
	env := newTestEnv(t)
	activity, _, _ := env.seedActivity(t)

	if resp := env.post(t, "/api/activities/"+activity.ID+"/display", map[string]any{"mode": "answers"}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set display: got %d", resp.StatusCode)
	}
	if resp := env.post(t, "/api/activities/"+activity.ID+"/display", map[string]any{"mode": "stats", "statsLimit": -1}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative limit: expected 400, got %d", resp.StatusCode)
	}

	var view app.ActivityView
	if err := json.NewDecoder(env.get(t, "/api/activities/"+activity.ID).Body).Decode(&view); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if view.Live == nil || view.Live.Display.Mode != domain.DisplayAnswers {
		t.Fatalf("expected answers display in live state, got %+v", view.Live)
	}
}
