// Package translate defines the Provider interface for machine translation
// backends together with language detection.
//
// Language arguments are ISO 639-1 style base codes ("en", "ms", "zh-CN");
// callers convert from BCP-47 locales before calling. Implementations must be
// safe for concurrent use.
package translate

import "context"

// Request describes one translation.
type Request struct {
	Text string

	// Target is the language to translate into. Required.
	Target string

	// Source is the language of Text. Empty asks the provider to detect it.
	Source string
}

// Result is the output of a translation.
type Result struct {
	Text string

	// DetectedSource is the language the provider detected, when Source was
	// empty. May be empty.
	DetectedSource string
}

// Detection is the output of language detection. Language is "und" or empty
// when the provider could not decide.
type Detection struct {
	Language   string
	Confidence float64
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate translates req.Text. Empty text returns an empty result
	// without a network call.
	Translate(ctx context.Context, req Request) (*Result, error)

	// Detect identifies the language of text.
	Detect(ctx context.Context, text string) (*Detection, error)
}
