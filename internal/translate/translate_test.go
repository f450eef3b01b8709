package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	"github.com/MrWong99/drivewise/pkg/provider/translate/mock"
)

func TestToInternal_NoOpForInternalLanguage(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	tr := New(m, "en")

	for _, src := range []string{"en", "en-US", "en-SG", "EN-ph"} {
		for _, text := range []string{"hello", "navigate to the airport", "x"} {
			got, resolved, err := tr.ToInternal(context.Background(), text, src)
			if err != nil || got != text || resolved != "en" {
				t.Errorf("ToInternal(%q, %q) = %q, %q, %v", text, src, got, resolved, err)
			}
			back, err := tr.FromInternal(context.Background(), text, src)
			if err != nil || back != text {
				t.Errorf("FromInternal(%q, %q) = %q, %v", text, src, back, err)
			}
		}
	}
	if m.TranslateCount() != 0 {
		t.Errorf("provider called %d times, want 0", m.TranslateCount())
	}
}

func TestToInternal_Translates(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	tr := New(m, "en")

	got, resolved, err := tr.ToInternal(context.Background(), "bawa saya ke KLCC", "ms-MY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[en] bawa saya ke KLCC" || resolved != "ms" {
		t.Errorf("got %q, %q", got, resolved)
	}
	req := m.TranslateCalls[0]
	if req.Source != "ms" || req.Target != "en" {
		t.Errorf("request = %+v", req)
	}
}

func TestToInternal_ChineseKeepsScript(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	if _, _, err := New(m, "en").ToInternal(context.Background(), "去机场", "cmn-Hans-CN"); err != nil {
		t.Fatal(err)
	}
	if got := m.TranslateCalls[0].Source; got != "zh-CN" {
		t.Errorf("source = %q, want zh-CN", got)
	}
}

func TestToInternal_UsesDetectedSourceWhenUnknown(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{TranslateFunc: func(_ context.Context, req translate.Request) (*translate.Result, error) {
		return &translate.Result{Text: "hello", DetectedSource: "th"}, nil
	}}
	_, resolved, err := New(m, "en").ToInternal(context.Background(), "สวัสดี", "")
	if err != nil || resolved != "th" {
		t.Errorf("resolved = %q, err = %v", resolved, err)
	}
}

func TestTranslate_DegradesToInput(t *testing.T) {
	t.Parallel()
	empty := &mock.Provider{TranslateFunc: func(context.Context, translate.Request) (*translate.Result, error) {
		return &translate.Result{Text: " "}, nil
	}}
	tests := []struct {
		name     string
		provider translate.Provider
		cause    error
	}{
		{"provider error", &mock.Provider{TranslateErr: errors.New("503")}, nil},
		{"empty result", empty, ErrEmptyTranslation},
		{"no provider", nil, ErrUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := New(tc.provider, "en")

			got, resolved, err := tr.ToInternal(context.Background(), "terima kasih", "id-ID")
			if got != "terima kasih" || resolved != "id" {
				t.Errorf("ToInternal = %q, %q", got, resolved)
			}
			if !pipeline.IsRecoverable(err) || pipeline.StageOf(err) != pipeline.StageTranslate {
				t.Errorf("ToInternal err = %v", err)
			}
			if tc.cause != nil && !errors.Is(err, tc.cause) {
				t.Errorf("cause = %v, want %v", err, tc.cause)
			}

			back, err := tr.FromInternal(context.Background(), "Okay.", "id-ID")
			if back != "Okay." || !pipeline.IsRecoverable(err) {
				t.Errorf("FromInternal = %q, %v", back, err)
			}
		})
	}
}

func TestRoundTripNeverEmpty(t *testing.T) {
	t.Parallel()
	tr := New(&mock.Provider{}, "en")
	for _, text := range []string{"bonjour", "où est la gare", "a"} {
		in, _, err := tr.ToInternal(context.Background(), text, "fr-FR")
		if err != nil {
			t.Fatal(err)
		}
		out, err := tr.FromInternal(context.Background(), in, "fr-FR")
		if err != nil {
			t.Fatal(err)
		}
		if out == "" {
			t.Errorf("round trip of %q produced empty text", text)
		}
	}
}

func TestFromInternal_TargetCode(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	got, err := New(m, "en").FromInternal(context.Background(), "Turn left.", "vi-VN")
	if err != nil || got != "[vi] Turn left." {
		t.Errorf("got %q, %v", got, err)
	}
	if req := m.TranslateCalls[0]; req.Source != "en" || req.Target != "vi" {
		t.Errorf("request = %+v", req)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		detection *translate.Detection
		err       error
		threshold float64
		want      string
	}{
		{"confident malay", &translate.Detection{Language: "ms", Confidence: 0.9}, nil, 0.5, "ms-MY"},
		{"chinese", &translate.Detection{Language: "zh-CN", Confidence: 0.8}, nil, 0.5, "cmn-Hans-CN"},
		{"at threshold", &translate.Detection{Language: "th", Confidence: 0.5}, nil, 0.5, ""},
		{"undetermined", &translate.Detection{Language: "und", Confidence: 1}, nil, 0.5, ""},
		{"custom threshold", &translate.Detection{Language: "vi", Confidence: 0.4}, nil, 0.3, "vi-VN"},
		{"unmapped", &translate.Detection{Language: "fr", Confidence: 0.9}, nil, 0.5, "fr"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := &mock.Provider{Detection: tc.detection}
			got, err := New(m, "en", WithDetectThreshold(tc.threshold)).Detect(context.Background(), "some text")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Detect = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetect_ErrorAndEmpty(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{DetectErr: errors.New("timeout")}
	tr := New(m, "en")

	got, err := tr.Detect(context.Background(), "text")
	if got != "" || !pipeline.IsRecoverable(err) {
		t.Errorf("Detect = %q, %v", got, err)
	}
	if got, err := tr.Detect(context.Background(), "   "); got != "" || err != nil {
		t.Errorf("Detect(blank) = %q, %v", got, err)
	}
	if m.DetectCount() != 1 {
		t.Errorf("DetectCount = %d, want 1", m.DetectCount())
	}
}
