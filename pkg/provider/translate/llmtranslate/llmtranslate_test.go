package llmtranslate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/drivewise/pkg/provider/llm"
	llmmock "github.com/MrWong99/drivewise/pkg/provider/llm/mock"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

func TestNew_NilLLM(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	m := &llmmock.Provider{Response: llmmock.Text(`"Bawa saya ke lapangan terbang"`)}
	p, _ := New(m)

	res, err := p.Translate(context.Background(), translate.Request{
		Text: "Take me to the airport", Target: "ms", Source: "en",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Bawa saya ke lapangan terbang" {
		t.Errorf("Text = %q", res.Text)
	}
	req := m.LastRequest()
	if !strings.Contains(req.SystemPrompt, `"ms"`) || !strings.Contains(req.SystemPrompt, `"en"`) {
		t.Errorf("system prompt missing language codes: %q", req.SystemPrompt)
	}
	if req.Messages[0].Content != "Take me to the airport" {
		t.Errorf("user message = %q", req.Messages[0].Content)
	}
}

func TestTranslate_EmptyModelOutput(t *testing.T) {
	t.Parallel()
	p, _ := New(&llmmock.Provider{Response: llmmock.Text("   ")})
	if _, err := p.Translate(context.Background(), translate.Request{Text: "hi", Target: "ms"}); err == nil {
		t.Fatal("expected error for empty translation")
	}
}

func TestTranslate_LLMError(t *testing.T) {
	t.Parallel()
	p, _ := New(&llmmock.Provider{Err: errors.New("quota")})
	if _, err := p.Translate(context.Background(), translate.Request{Text: "hi", Target: "ms"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		output   string
		wantLang string
		wantConf float64
	}{
		{"clean", `{"language":"vi","confidence":0.88}`, "vi", 0.88},
		{"fenced", "```json\n{\"language\":\"TH\",\"confidence\":1.4}\n```", "th", 1},
		{"prose", "I cannot tell.", "und", 0},
		{"missing language", `{"confidence":0.9}`, "und", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &llmmock.Provider{Response: &llm.CompletionResponse{Content: tt.output}}
			p, _ := New(m)
			d, err := p.Detect(context.Background(), "xin chào")
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if d.Language != tt.wantLang || d.Confidence != tt.wantConf {
				t.Errorf("got %+v, want %s/%v", d, tt.wantLang, tt.wantConf)
			}
			if !m.LastRequest().JSONMode {
				t.Error("detect should request JSON mode")
			}
		})
	}
}
