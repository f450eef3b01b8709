// Package audio holds the PCM helpers used around speech recognition:
// WAV decoding and encoding, down-mixing, resampling, level measurement and
// spectral noise reduction.
//
// Everything operates on [Clip], a block of 16-bit little-endian PCM.
package audio

import "time"

// Canonical recognizer input: 16 kHz mono signed 16-bit little-endian PCM.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	bitsPerSample       = 16
)

// Clip is a decoded block of 16-bit little-endian PCM audio.
type Clip struct {
	// PCM holds interleaved int16 little-endian samples.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Empty reports whether the clip carries no samples.
func (c Clip) Empty() bool { return len(c.PCM) < 2 }

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.PCM) / (2 * c.Channels)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}
