package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
	"github.com/MrWong99/drivewise/pkg/provider/tts/mock"
)

var voices = Voices{
	Table:        map[string]string{"ms-my": "ms-MY-Standard-A", "en-US": "en-US-Standard-C"},
	Default:      "en-US-Standard-C",
	SpeakingRate: 1.1,
	Encoding:     tts.EncodingMP3,
}

func TestSynthesize_VoiceSelection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lang, want string
	}{
		{"ms-MY", "ms-MY-Standard-A"},
		{"MS-my", "ms-MY-Standard-A"},
		{"en-US", "en-US-Standard-C"},
		{"th-TH", "en-US-Standard-C"},
		{"", "en-US-Standard-C"},
	}
	for _, tc := range tests {
		p := &mock.Provider{}
		audio, err := New(p, voices).Synthesize(context.Background(), "hello", tc.lang)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.lang, err)
		}
		if len(audio.Data) == 0 {
			t.Errorf("%s: empty audio", tc.lang)
		}
		req := p.LastRequest()
		if req.Voice != tc.want {
			t.Errorf("%s: voice = %q, want %q", tc.lang, req.Voice, tc.want)
		}
		if req.LanguageCode != tc.lang || req.SpeakingRate != 1.1 || req.Encoding != tts.EncodingMP3 {
			t.Errorf("%s: request = %+v", tc.lang, req)
		}
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{}
	audio, err := New(p, voices).Synthesize(context.Background(), "  ", "en-US")
	if err != nil || len(audio.Data) != 0 {
		t.Errorf("audio = %v, err = %v", audio, err)
	}
	if p.CallCount() != 0 {
		t.Error("provider called for blank text")
	}
}

func TestSynthesize_Failure(t *testing.T) {
	t.Parallel()
	cause := errors.New("quota")
	_, err := New(&mock.Provider{Err: cause}, voices).Synthesize(context.Background(), "hello", "en-US")
	if !errors.Is(err, pipeline.ErrSynthesisFailed) || !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
	if pipeline.IsRecoverable(err) || pipeline.StageOf(err) != pipeline.StageSynthesize || pipeline.KindOf(err) != pipeline.KindUpstream {
		t.Errorf("err classification wrong: %v", err)
	}

	_, err = New(&mock.Provider{Audio: tts.Audio{Data: []byte{}}}, voices).Synthesize(context.Background(), "hello", "en-US")
	if !errors.Is(err, pipeline.ErrSynthesisFailed) {
		t.Errorf("empty audio err = %v", err)
	}
}

func TestSetVoices(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{}
	s := New(p, voices)
	s.SetVoices(Voices{Default: "new-default"})
	if _, err := s.Synthesize(context.Background(), "hi", "ms-MY"); err != nil {
		t.Fatal(err)
	}
	if got := p.LastRequest().Voice; got != "new-default" {
		t.Errorf("voice = %q after reload", got)
	}
	if s.Voices().Default != "new-default" {
		t.Error("Voices snapshot not updated")
	}
}
