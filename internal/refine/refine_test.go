package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/llm/mock"
)

func TestRefine_ReturnsRefinedText(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{Response: mock.Text("bawa saya ke KLCC")}
	r := New(m)

	got, err := r.Refine(context.Background(), "KLCC", "ms-MY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bawa saya ke KLCC" {
		t.Errorf("got %q", got)
	}

	req := m.LastRequest()
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "Malay") || !strings.Contains(prompt, "ms-MY") {
		t.Errorf("prompt does not name the language: %q", prompt)
	}
	if !strings.Contains(prompt, "Transcript: KLCC") {
		t.Errorf("prompt does not carry the transcript: %q", prompt)
	}
	if req.Temperature != defaultTemperature {
		t.Errorf("temperature = %v, want %v", req.Temperature, defaultTemperature)
	}
}

func TestRefine_Degrades(t *testing.T) {
	t.Parallel()
	long := "please take me to the international airport terminal two"

	tests := []struct {
		name    string
		mock    *mock.Provider
		text    string
		wantErr error
	}{
		{"provider error", &mock.Provider{Err: errors.New("quota")}, long, nil},
		{"empty answer", &mock.Provider{Response: mock.Text("   ")}, long, ErrEmptyRefinement},
		{"too short", &mock.Provider{Response: mock.Text("airport")}, long, ErrTooShort},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := New(tc.mock).Refine(context.Background(), tc.text, "en-US")
			if got != tc.text {
				t.Errorf("got %q, want original", got)
			}
			if !pipeline.IsRecoverable(err) {
				t.Fatalf("expected recoverable error, got %v", err)
			}
			if pipeline.StageOf(err) != pipeline.StageRefine {
				t.Errorf("stage = %q", pipeline.StageOf(err))
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRefine_ShortOriginalSkipsLengthGuard(t *testing.T) {
	t.Parallel()
	got, err := New(&mock.Provider{Response: mock.Text("go")}).Refine(context.Background(), "go home now please", "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "go" {
		t.Errorf("got %q, want refinement accepted", got)
	}
}

func TestRefine_SkipsEmptyInput(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{Response: mock.Text("anything")}
	r := New(m)

	for _, tc := range []struct{ text, lang string }{{"", "en-US"}, {"  ", "en-US"}, {"hello", ""}} {
		got, err := r.Refine(context.Background(), tc.text, tc.lang)
		if err != nil || got != tc.text {
			t.Errorf("Refine(%q, %q) = %q, %v", tc.text, tc.lang, got, err)
		}
	}
	if m.CallCount() != 0 {
		t.Errorf("provider called %d times, want 0", m.CallCount())
	}
}

func TestClean(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"\"take me home\"":                 "take me home",
		"```\ntake me home\n```":           "take me home",
		"Corrected transcript: go to KLCC": "go to KLCC",
		"  plain  ":                        "plain",
	}
	for in, want := range tests {
		if got := clean(in); got != want {
			t.Errorf("clean(%q) = %q, want %q", in, got, want)
		}
	}
}
