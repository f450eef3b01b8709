// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MrWong99/drivewise/pkg/audio"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model is loaded once at startup and shared; each Recognize call
// creates its own inference context.
type NativeProvider struct {
	model whisperlib.Model
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &NativeProvider{model: model}, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Recognize runs in-process inference. WAV input is decoded and every input
// is brought to 16 kHz mono before it reaches whisper.
func (p *NativeProvider) Recognize(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return &stt.Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	var clip audio.Clip
	if req.Encoding == stt.EncodingWAV {
		c, err := audio.DecodeWAV(req.Audio)
		if err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
		clip = c
	} else {
		clip = audio.Clip{PCM: req.Audio, SampleRate: req.SampleRate, Channels: 1}
	}
	clip = audio.Canonicalize(clip)

	floats := audio.PCMToFloat(clip.PCM)
	samples := make([]float32, len(floats))
	for i, f := range floats {
		samples[i] = float32(f)
	}

	// Contexts are not thread-safe; the model is.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := baseLanguage(req.LanguageHint)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using auto-detect", "language", lang, "err", err)
		_ = wctx.SetLanguage("auto")
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	res := &stt.Result{Language: wctx.DetectedLanguage()}
	if text := strings.Join(parts, " "); text != "" {
		res.Alternatives = []stt.Alternative{{Text: text}}
	}
	return res, nil
}
