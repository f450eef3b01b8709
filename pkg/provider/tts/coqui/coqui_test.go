package coqui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/drivewise/pkg/audio"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
)

func testWAV() []byte {
	return audio.EncodeWAV(audio.Clip{PCM: []byte{1, 0, 2, 0}, SampleRate: 22050, Channels: 1})
}

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
	p, err := New("http://localhost:5002/")
	if err != nil {
		t.Fatal(err)
	}
	if p.apiMode != APIModeStandard {
		t.Errorf("default mode = %q, want standard", p.apiMode)
	}
	if p.serverURL != "http://localhost:5002" {
		t.Errorf("serverURL = %q", p.serverURL)
	}
}

func TestSynthesize_StandardAPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != apiTTSEndpoint {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("text") != "hello" || q.Get("speaker_id") != "p225" || q.Get("language_id") != "en" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write(testWAV())
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithDefaultSpeaker("p225"))
	out, err := p.Synthesize(context.Background(), tts.Request{Text: "hello", LanguageCode: "en-US"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Encoding != tts.EncodingWAV || len(out.Data) != 48 {
		t.Errorf("out = %d bytes %s", len(out.Data), out.Encoding)
	}
}

func TestSynthesize_XTTS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ttsEndpoint {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body ttsRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.SpeakerWav != "driver_voice" || body.Language != "vi" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write(testWAV())
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithAPIMode(APIModeXTTS))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "xin chào", LanguageCode: "vi-VN", Voice: "driver_voice"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	t.Parallel()

	t.Run("xtts without speaker", func(t *testing.T) {
		t.Parallel()
		p, _ := New("http://unused", WithAPIMode(APIModeXTTS))
		if _, err := p.Synthesize(context.Background(), tts.Request{Text: "x"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		p, _ := New(srv.URL)
		if _, err := p.Synthesize(context.Background(), tts.Request{Text: "x"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("not a wav", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		}))
		defer srv.Close()
		p, _ := New(srv.URL)
		if _, err := p.Synthesize(context.Background(), tts.Request{Text: "x"}); err == nil {
			t.Error("expected error")
		}
	})
}
