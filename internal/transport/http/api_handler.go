package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
)

// APIHandler serves the REST surface: question bank, activities and operator commands.
type APIHandler struct {
	service *app.Service
}

func NewAPIHandler(service *app.Service) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts the REST routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/questions", h.createQuestion)
	mux.HandleFunc("GET /api/questions", h.listQuestions)
	mux.HandleFunc("GET /api/questions/{id}", h.getQuestion)
	mux.HandleFunc("PUT /api/questions/{id}", h.updateQuestion)
	mux.HandleFunc("DELETE /api/questions/{id}", h.deleteQuestion)

	mux.HandleFunc("POST /api/activities", h.createActivity)
	mux.HandleFunc("GET /api/activities", h.listActivities)
	mux.HandleFunc("GET /api/activities/{id}", h.getActivity)
	mux.HandleFunc("DELETE /api/activities/{id}", h.deleteActivity)
	mux.HandleFunc("GET /api/activities/{id}/groups", h.groups)
	mux.HandleFunc("GET /api/activities/{id}/stats", h.stats)
	mux.HandleFunc("POST /api/activities/{id}/participants", h.join)
	mux.HandleFunc("GET /api/activities/{id}/participants/{participantId}", h.participant)
	mux.HandleFunc("POST /api/activities/{id}/answers", h.submit)
	mux.HandleFunc("GET /api/activities/{id}/answers", h.answers)

	mux.HandleFunc("POST /api/activities/{id}/open", h.open)
	mux.HandleFunc("POST /api/activities/{id}/close", h.close)
	mux.HandleFunc("POST /api/activities/{id}/advance", h.advance)
	mux.HandleFunc("POST /api/activities/{id}/end", h.end)
	mux.HandleFunc("POST /api/activities/{id}/project", h.project)
	mux.HandleFunc("POST /api/activities/{id}/display", h.display)
}

type joinRequest struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

type openRequest struct {
	QuestionID      string `json:"questionId"`
	DurationSeconds int    `json:"durationSeconds"`
}

type projectRequest struct {
	ParticipantID string `json:"participantId"`
}

type submitRequest struct {
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	domain.AnswerPayload
}

func (h *APIHandler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if !decode(w, r, &q) {
		return
	}
	created, err := h.service.CreateQuestion(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *APIHandler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if !decode(w, r, &q) {
		return
	}
	updated, err := h.service.UpdateQuestion(r.Context(), r.PathValue("id"), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetQuestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *APIHandler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuestion(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req domain.NewActivity
	if !decode(w, r, &req) {
		return
	}
	activity, err := h.service.CreateActivity(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

func (h *APIHandler) listActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.service.ListActivities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *APIHandler) getActivity(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteActivity(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Groups(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"groups": groups})
}

func (h *APIHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	participant, err := h.service.Join(r.Context(), r.PathValue("id"), req.Name, req.Group)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *APIHandler) participant(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Participant(r.Context(), r.PathValue("id"), r.PathValue("participantId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// answers lists the answer history, optionally filtered by ?questionId= and ?participantId=.
func (h *APIHandler) answers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := app.AnswerFilter{
		QuestionID:    query.Get("questionId"),
		ParticipantID: query.Get("participantId"),
	}
	answers, err := h.service.Answers(r.Context(), r.PathValue("id"), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

// submit answers with 200 for both outcomes; the body says whether it was accepted.
func (h *APIHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	result := h.service.Submit(r.Context(), r.PathValue("id"), req.ParticipantID, req.QuestionID, req.AnswerPayload)
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, r, domain.ErrInvalidDuration)
		return
	}
	snap, err := h.service.OpenQuestion(r.Context(), r.PathValue("id"), req.QuestionID, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) close(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.CloseQuestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) advance(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) end(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndActivity(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) project(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.ProjectAnswer(r.Context(), r.PathValue("id"), req.ParticipantID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) display(w http.ResponseWriter, r *http.Request) {
	var req domain.DisplayState
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.SetDisplay(r.Context(), r.PathValue("id"), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}
