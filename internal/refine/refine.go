// Package refine implements the optional transcript clean-up stage.
//
// A [Refiner] asks an [llm.Provider] to repair likely recognition errors and
// complete truncated driver requests (a bare "KLCC" becomes "take me to
// KLCC") without adding unrelated content. The stage never fails a turn: any
// provider failure or implausible answer yields the original text together
// with a recoverable [pipeline.Error] describing what was discarded.
package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/drivewise/internal/langutil"
	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/llm"
)

const (
	defaultTemperature = 0.2

	// minCheckedLength is the original length (in runes) above which the
	// shrinkage guard applies.
	minCheckedLength = 20

	// minRatio is the smallest refined/original length ratio accepted.
	minRatio = 0.5
)

// ErrTooShort is the cause attached when a refinement is discarded because
// it dropped too much of the original.
var ErrTooShort = errors.New("refinement much shorter than original")

// ErrEmptyRefinement is the cause attached when the model returned nothing.
var ErrEmptyRefinement = errors.New("refinement returned empty text")

const promptTemplate = `You are correcting a speech-to-text transcript produced in a moving vehicle.
The driver is speaking %s (%s) to a ride-hailing driving assistant.

Rules:
- Fix words that are clearly recognition errors, using the surrounding words and the driving context.
- If the transcript is a bare place name or a truncated request, complete it into the request the driver most likely meant (e.g. "airport" becomes "take me to the airport").
- Keep the same language as the transcript. Do not translate.
- Do not add information that is not implied by the transcript.
- Reply with the corrected transcript only, without quotes or commentary.

Transcript: %s`

// Option is a functional option for configuring a [Refiner].
type Option func(*Refiner)

// WithTemperature sets the LLM sampling temperature. Default: 0.2.
func WithTemperature(t float64) Option {
	return func(r *Refiner) { r.temperature = t }
}

// Refiner cleans raw transcripts with a generative model. It is safe for
// concurrent use.
type Refiner struct {
	llm         llm.Provider
	temperature float64
}

// New returns a [Refiner] backed by provider.
func New(provider llm.Provider, opts ...Option) *Refiner {
	r := &Refiner{llm: provider, temperature: defaultTemperature}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Refine returns the refined form of text spoken in lang. The returned
// string is always usable: when err is non-nil it is a recoverable
// [pipeline.Error] and the string equals text.
func (r *Refiner) Refine(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" || lang == "" {
		return text, nil
	}

	prompt := fmt.Sprintf(promptTemplate, langutil.Name(lang), lang, text)
	req := llm.UserPrompt("", prompt)
	req.Temperature = r.temperature

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return text, pipeline.Degraded(pipeline.StageRefine, fmt.Errorf("refine: complete: %w", err))
	}

	refined := clean(resp.Content)
	if refined == "" {
		return text, pipeline.Degraded(pipeline.StageRefine, ErrEmptyRefinement)
	}
	if !plausible(text, refined) {
		return text, pipeline.Degraded(pipeline.StageRefine,
			fmt.Errorf("%w: %d of %d characters", ErrTooShort, utf8.RuneCountInString(refined), utf8.RuneCountInString(text)))
	}
	return refined, nil
}

// plausible rejects refinements that are less than half the original length
// when the original is long enough for the ratio to be meaningful.
func plausible(original, refined string) bool {
	o := utf8.RuneCountInString(original)
	if o <= minCheckedLength {
		return true
	}
	return float64(utf8.RuneCountInString(refined)) >= float64(o)*minRatio
}

// clean strips fences, surrounding quotes and a leading label some models add.
func clean(s string) string {
	s = strings.TrimSpace(llm.StripMarkdown(s))
	for _, label := range []string{"Corrected transcript:", "Transcript:"} {
		if len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
			s = strings.TrimSpace(s[len(label):])
		}
	}
	return strings.TrimSpace(strings.Trim(s, "\"'“”"))
}
