package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestRecognize(t *testing.T) {
	t.Parallel()

	var got recognizeRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech:recognize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"alternatives":[{"transcript":"go to ","confidence":0.6},{"transcript":"go two","confidence":0.8}],"languageCode":"ms-my"},
			{"alternatives":[{"transcript":"the mall","confidence":0.9}]}
		]}`))
	}))
	defer srv.Close()

	p, err := New("k3y", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Recognize(context.Background(), stt.Request{
		Audio:                []byte{1, 2, 3, 4},
		SampleRate:           16000,
		Encoding:             stt.EncodingLinear16,
		LanguageHint:         "ms-MY",
		AlternativeLanguages: []string{"ms-MY", "en-SG", "id-ID", "th-TH", "vi-VN"},
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if gotKey != "k3y" {
		t.Errorf("key = %q, want k3y", gotKey)
	}
	if got.Config.LanguageCode != "ms-MY" {
		t.Errorf("languageCode = %q, want ms-MY", got.Config.LanguageCode)
	}
	if want := []string{"en-SG", "id-ID", "th-TH"}; strings.Join(got.Config.AlternativeLanguageCodes, ",") != strings.Join(want, ",") {
		t.Errorf("alternativeLanguageCodes = %v, want %v", got.Config.AlternativeLanguageCodes, want)
	}
	if got.Config.Model != defaultModel || got.Config.SampleRateHertz != 16000 {
		t.Errorf("config = %+v", got.Config)
	}
	if audio, _ := base64.StdEncoding.DecodeString(got.Audio.Content); len(audio) != 4 {
		t.Errorf("audio content length = %d, want 4", len(audio))
	}

	if res.Language != "ms-my" {
		t.Errorf("Language = %q, want ms-my", res.Language)
	}
	if best := res.Best(); best.Text != "go two the mall" {
		t.Errorf("Best().Text = %q, want %q", best.Text, "go two the mall")
	}
}

func TestRecognize_EmptyAudioSkipsCall(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	res, err := p.Recognize(context.Background(), stt.Request{SampleRate: 16000})
	if err != nil || len(res.Alternatives) != 0 {
		t.Errorf("got (%v, %v), want empty result", res, err)
	}
}

func TestRecognize_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	p, _ := New("bad", WithBaseURL(srv.URL))
	_, err := p.Recognize(context.Background(), stt.Request{Audio: []byte{0, 0}, SampleRate: 16000})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("err = %v, want API error message", err)
	}
}

func TestRecognize_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	res, err := p.Recognize(context.Background(), stt.Request{Audio: []byte{0, 0}, SampleRate: 16000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Language != "" || res.Best().Text != "" {
		t.Errorf("res = %+v, want empty", res)
	}
}
