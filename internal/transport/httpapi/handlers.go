package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrWong99/drivewise/internal/conversation"
	"github.com/MrWong99/drivewise/internal/dispatch"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	"github.com/MrWong99/drivewise/pkg/types"
)

// turnHeader is the metadata of one turn, sent as multipart fields or as
// the JSON header frame of a WebSocket turn.
type turnHeader struct {
	SessionID  string              `json:"session_id"`
	Language   string              `json:"language,omitempty"`
	Lat        *float64            `json:"lat,omitempty"`
	Lng        *float64            `json:"lng,omitempty"`
	SampleRate int                 `json:"sample_rate,omitempty"`
	Channels   int                 `json:"channels,omitempty"`
	Order      *types.OrderContext `json:"order,omitempty"`
}

func (h turnHeader) turn(audio []byte) conversation.Turn {
	t := conversation.Turn{
		SessionID:    h.SessionID,
		Audio:        audio,
		SampleRate:   h.SampleRate,
		Channels:     h.Channels,
		LanguageHint: h.Language,
		Order:        h.Order,
	}
	if h.Lat != nil && h.Lng != nil {
		t.Location = &types.Location{Lat: *h.Lat, Lng: *h.Lng}
	}
	return t
}

// turnResponse is the JSON body of a completed turn.
type turnResponse struct {
	SessionID  string                 `json:"session_id"`
	Transcript string                 `json:"transcript"`
	Language   string                 `json:"detected_language,omitempty"`
	ReplyText  string                 `json:"reply_text"`
	ReplyAudio []byte                 `json:"reply_audio"`
	Encoding   string                 `json:"audio_encoding,omitempty"`
	MIMEType   string                 `json:"audio_mime_type,omitempty"`
	Action     *dispatch.ActionResult `json:"action_result,omitempty"`
	Degraded   []string               `json:"degraded,omitempty"`
}

func newTurnResponse(sessionID string, r *conversation.Reply) turnResponse {
	resp := turnResponse{
		SessionID:  sessionID,
		Transcript: r.Transcript,
		Language:   r.Language,
		ReplyText:  r.Text,
		ReplyAudio: r.Audio.Data,
		Action:     r.Action,
	}
	if r.Audio.Encoding != "" {
		resp.Encoding = string(r.Audio.Encoding)
		resp.MIMEType = r.Audio.Encoding.MIMEType()
	}
	for _, d := range r.Degraded {
		resp.Degraded = append(resp.Degraded, d.Error())
	}
	return resp
}

// run processes one turn under the server's timeout.
func (s *Server) run(ctx context.Context, h turnHeader, audio []byte) (int, any) {
	if h.SessionID == "" {
		h.SessionID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	reply, err := s.turns.Process(ctx, h.turn(audio))
	if err != nil {
		return turnError(err, h.SessionID)
	}
	return http.StatusOK, newTurnResponse(h.SessionID, reply)
}

// handleTurn serves POST /v1/turns.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudio+1<<20)
	if err := r.ParseMultipartForm(s.maxAudio); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "too_large", Message: "The audio upload is too large."})
			return
		}
		badRequest(w, "Expected a multipart form with an audio file.")
		return
	}

	h, err := headerFromForm(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var audio []byte
	if f, _, err := r.FormFile("audio"); err == nil {
		audio, err = io.ReadAll(io.LimitReader(f, s.maxAudio+1))
		f.Close()
		if err != nil {
			badRequest(w, "Could not read the audio upload.")
			return
		}
		if int64(len(audio)) > s.maxAudio {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "too_large", Message: "The audio upload is too large."})
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		badRequest(w, "Could not read the audio upload.")
		return
	}

	status, body := s.run(r.Context(), h, audio)
	writeJSON(w, status, body)
}

func headerFromForm(r *http.Request) (turnHeader, error) {
	h := turnHeader{
		SessionID: strings.TrimSpace(r.FormValue("session_id")),
		Language:  strings.TrimSpace(r.FormValue("language")),
	}
	lat, lng := r.FormValue("lat"), r.FormValue("lng")
	if (lat == "") != (lng == "") {
		return h, errors.New("Both lat and lng are required for a location.")
	}
	if lat != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		ln, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil {
			return h, errors.New("lat and lng must be numbers.")
		}
		h.Lat, h.Lng = &la, &ln
	}
	for field, dst := range map[string]*int{"sample_rate": &h.SampleRate, "channels": &h.Channels} {
		if v := r.FormValue(field); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return h, fmt.Errorf("%s must be a positive integer.", field)
			}
			*dst = n
		}
	}
	if o := r.FormValue("order"); o != "" {
		var order types.OrderContext
		if err := json.Unmarshal([]byte(o), &order); err != nil {
			return h, errors.New("order must be a JSON object.")
		}
		h.Order = &order
	}
	return h, nil
}

// handleGetHistory serves GET /v1/sessions/{id}/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := s.turns.History(r.Context(), id)
	if err != nil {
		observe.Logger(r.Context()).Error("httpapi: read history", "session_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: conversation.ReplyInternalError})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": msgs})
}

// handleClearHistory serves DELETE /v1/sessions/{id}/history.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.turns.ClearHistory(r.Context(), id); err != nil {
		observe.Logger(r.Context()).Error("httpapi: clear history", "session_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: conversation.ReplyInternalError})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// handleSynthesize serves POST /v1/synthesize and answers with raw audio.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		badRequest(w, "Expected a JSON body with non-empty text.")
		return
	}
	if req.Language == "" {
		req.Language = "en-US"
	}
	audio, err := s.speaker.Synthesize(r.Context(), req.Text, req.Language)
	if err != nil {
		status, body := turnError(err, "")
		writeJSON(w, status, body)
		return
	}
	w.Header().Set("Content-Type", audio.Encoding.MIMEType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

type translateResponse struct {
	Text           string `json:"text"`
	DetectedSource string `json:"detected_source,omitempty"`
}

// handleTranslate serves POST /v1/translate.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil ||
		strings.TrimSpace(req.Text) == "" || req.Target == "" {
		badRequest(w, "Expected a JSON body with text and target.")
		return
	}
	res, err := s.translator.Translate(r.Context(), translate.Request{Text: req.Text, Source: req.Source, Target: req.Target})
	if err != nil {
		observe.Logger(r.Context()).Warn("httpapi: translate failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream", Message: "The translation service is not available right now."})
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{Text: res.Text, DetectedSource: res.DetectedSource})
}
