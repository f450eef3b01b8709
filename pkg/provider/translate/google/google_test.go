package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	var got translateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("missing key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"take me home","detectedSourceLanguage":"ms"}]}}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL+"/"))
	res, err := p.Translate(context.Background(), translate.Request{Text: "bawa saya pulang", Target: "en"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "take me home" || res.DetectedSource != "ms" {
		t.Errorf("got %+v", res)
	}
	if got.Target != "en" || got.Source != "" || got.Format != "text" || len(got.Q) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestTranslate_EmptyTextSkipsCall(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	res, err := p.Translate(context.Background(), translate.Request{Target: "en"})
	if err != nil || res.Text != "" {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestTranslate_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	if _, err := p.Translate(context.Background(), translate.Request{Text: "x", Target: "en"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("path = %q, want /detect", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"detections":[[{"language":"th","confidence":0.93,"isReliable":false}]]}}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	d, err := p.Detect(context.Background(), "สวัสดี")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Language != "th" || d.Confidence != 0.93 {
		t.Errorf("got %+v", d)
	}
}

func TestDetect_NoDetections(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"detections":[]}}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	d, err := p.Detect(context.Background(), "hmm")
	if err != nil {
		t.Fatal(err)
	}
	if d.Language != "und" {
		t.Errorf("Language = %q, want und", d.Language)
	}
}
