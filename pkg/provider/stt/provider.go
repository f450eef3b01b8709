// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (Google Speech-to-Text,
// Deepgram, a whisper.cpp server, OpenAI Whisper) behind a single call: hand
// over one complete utterance, get back the candidate transcriptions and,
// when the backend supports it, the language it detected.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by providers that refuse zero-length input.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Recognize transcribes req.Audio. A result with no alternatives (or only
	// empty ones) is a valid outcome meaning "no speech recognised"; errors
	// are reserved for transport, auth and decoding failures.
	Recognize(ctx context.Context, req Request) (*Result, error)
}
