// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Google Cloud TTS,
// ElevenLabs, a local Coqui server) behind one batch call: a complete reply
// text in, an encoded audio clip out.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req.Text in the requested voice. Providers that
	// cannot produce req.Encoding return their native encoding and say so in
	// Audio.Encoding.
	Synthesize(ctx context.Context, req Request) (Audio, error)
}
