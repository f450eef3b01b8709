package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/drivewise/internal/observe"
)

const wsWriteTimeout = 10 * time.Second

// handleTurnStream serves GET /v1/turns/ws.
//
// Each turn is a text frame carrying a JSON turnHeader followed by one
// binary frame with the audio. The server answers every turn with a text
// frame holding either a turnResponse or an errorBody. A connection keeps
// one session: a header without session_id reuses the connection's id.
func (s *Server) handleTurnStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("httpapi: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxAudio + 1)

	ctx := r.Context()
	sessionID := uuid.NewString()
	log := observe.Logger(ctx).With("transport", "ws")
	log.Info("httpapi: stream opened", "session_id", sessionID)

	for {
		h, audio, err := s.readTurn(ctx, conn)
		if err != nil {
			var bad *frameError
			if errors.As(err, &bad) {
				if werr := s.writeFrame(ctx, conn, errorBody{Error: "invalid_input", Message: bad.msg, SessionID: sessionID}); werr != nil {
					return
				}
				continue
			}
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Warn("httpapi: stream read failed", "session_id", sessionID, "err", err)
			}
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if h.SessionID == "" {
			h.SessionID = sessionID
		} else {
			sessionID = h.SessionID
		}

		_, body := s.run(ctx, h, audio)
		if err := s.writeFrame(ctx, conn, body); err != nil {
			log.Debug("httpapi: stream write failed", "session_id", sessionID, "err", err)
			return
		}
	}
}

// frameError is a protocol violation the client can recover from.
type frameError struct{ msg string }

func (e *frameError) Error() string { return e.msg }

func (s *Server) readTurn(ctx context.Context, conn *websocket.Conn) (turnHeader, []byte, error) {
	var h turnHeader
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return h, nil, err
	}
	if typ != websocket.MessageText {
		return h, nil, &frameError{msg: "Expected a JSON header before the audio."}
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, nil, &frameError{msg: "The turn header is not valid JSON."}
	}

	typ, audio, err := conn.Read(ctx)
	if err != nil {
		return h, nil, err
	}
	if typ != websocket.MessageBinary {
		return h, nil, &frameError{msg: "Expected a binary audio frame after the header."}
	}
	return h, audio, nil
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
