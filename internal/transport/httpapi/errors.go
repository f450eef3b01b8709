package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/MrWong99/drivewise/internal/conversation"
	"github.com/MrWong99/drivewise/internal/pipeline"
)

// errorBody is the JSON error response.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Stage     string `json:"stage,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// statusFor maps a pipeline error kind to an HTTP status.
func statusFor(k pipeline.Kind) int {
	switch k {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindUpstream:
		return http.StatusBadGateway
	case pipeline.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// turnError renders a fatal turn error.
func turnError(err error, sessionID string) (int, errorBody) {
	stage := pipeline.StageOf(err)
	kind := pipeline.KindOf(err)
	msg := conversation.ReplyInternalError
	switch {
	case stage == pipeline.StageClassify:
		msg = conversation.ReplyNotUnderstood
	case kind == pipeline.KindInvalidInput:
		msg = "Sorry, I couldn't read that audio. Please try again."
	}
	return statusFor(kind), errorBody{
		Error:     kind.String(),
		Message:   msg,
		Stage:     string(stage),
		SessionID: sessionID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: pipeline.KindInvalidInput.String(), Message: msg})
}
