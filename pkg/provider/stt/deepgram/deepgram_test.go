package deepgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_WithHint(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Request{SampleRate: 16000, Encoding: stt.EncodingLinear16, LanguageHint: "ms"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "ms", q.Get("language"))
	assertEqual(t, "detect_language", "", q.Get("detect_language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
}

func TestBuildURL_DetectLanguageForWAV(t *testing.T) {
	p, _ := New("key", WithModel("base"))

	rawURL, err := p.buildURL(stt.Request{Encoding: stt.EncodingWAV})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "detect_language", "true", q.Get("detect_language"))
	assertEqual(t, "encoding", "", q.Get("encoding"))
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// ---- Round trip against a fake server ----

func TestRecognize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "RIFFdata" {
			t.Errorf("body = %q", body)
		}
		_, _ = w.Write([]byte(`{"results":{"channels":[{"detected_language":"id","language_confidence":0.8,
			"alternatives":[{"transcript":" ke bandara ","confidence":0.93}]}]}}`))
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint(srv.URL+"/v1/listen"))
	res, err := p.Recognize(context.Background(), stt.Request{Audio: []byte("RIFFdata"), Encoding: stt.EncodingWAV})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	assertEqual(t, "language", "id", res.Language)
	assertEqual(t, "text", "ke bandara", res.Best().Text)
}

func TestRecognize_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("x", WithEndpoint(srv.URL))
	if _, err := p.Recognize(context.Background(), stt.Request{Audio: []byte{1, 2}}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestParseDeepgramResponse_NoChannels(t *testing.T) {
	res := parseDeepgramResponse(deepgramResponse{})
	if res.Language != "" || len(res.Alternatives) != 0 {
		t.Errorf("got %+v, want empty result", res)
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", field, want, got)
	}
}
