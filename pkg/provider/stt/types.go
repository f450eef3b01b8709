package stt

// Encoding names the container/codec of Request.Audio.
type Encoding string

const (
	// EncodingLinear16 is headerless 16-bit little-endian PCM.
	EncodingLinear16 Encoding = "LINEAR16"

	// EncodingWAV is 16-bit PCM in a RIFF/WAV container.
	EncodingWAV Encoding = "WAV"
)

// Request is one recognition call.
type Request struct {
	// Audio holds the utterance in the given Encoding.
	Audio []byte

	// SampleRate in Hz. Mono audio is assumed.
	SampleRate int

	Encoding Encoding

	// LanguageHint is the preferred BCP-47 tag (e.g. "ms-MY"). Empty lets the
	// provider decide.
	LanguageHint string

	// AlternativeLanguages lists further BCP-47 tags the provider may pick
	// from. Providers without list-based detection ignore it.
	AlternativeLanguages []string
}

// Alternative is one candidate transcription.
type Alternative struct {
	Text string

	// Confidence is in [0, 1]. Zero when the provider does not report one.
	Confidence float64
}

// Result is the outcome of a recognition call.
type Result struct {
	// Alternatives in the order the provider returned them.
	Alternatives []Alternative

	// Language is the detected BCP-47 tag, or "" when the provider could not
	// tell.
	Language string
}

// Best returns the highest-confidence alternative. Ties go to the one seen
// first. A nil or empty result yields the zero Alternative.
func (r *Result) Best() Alternative {
	if r == nil || len(r.Alternatives) == 0 {
		return Alternative{}
	}
	best := r.Alternatives[0]
	for _, a := range r.Alternatives[1:] {
		if a.Confidence > best.Confidence {
			best = a
		}
	}
	return best
}
