package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/rs/zerolog/hlog"
)

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorCode maps domain errors to an HTTP status and a stable client code.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		return http.StatusNotFound, "activity_not_found"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return http.StatusNotFound, "participant_not_found"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound, "question_not_found"
	case errors.Is(err, domain.ErrAnswerNotFound):
		return http.StatusNotFound, "answer_not_found"
	case errors.Is(err, domain.ErrActivityExists):
		return http.StatusConflict, "activity_exists"
	case errors.Is(err, domain.ErrActivityEnded):
		return http.StatusConflict, "activity_ended"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrNoMoreQuestions):
		return http.StatusConflict, "no_more_questions"
	case errors.Is(err, domain.ErrQuestionInUse):
		return http.StatusConflict, "question_in_use"
	case errors.Is(err, domain.ErrQuestionNotInActivity):
		return http.StatusBadRequest, "question_not_in_activity"
	case errors.Is(err, domain.ErrInvalidDuration):
		return http.StatusBadRequest, "invalid_duration"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrSubscriberLagging):
		return http.StatusServiceUnavailable, "subscriber_lagging"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeJSON(w, status, errorPayload{Error: "internal error", Code: code})
		return
	}
	writeJSON(w, status, errorPayload{Error: err.Error(), Code: code})
}
