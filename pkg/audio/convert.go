package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Canonicalize converts a clip to the canonical recognizer format (16 kHz
// mono). Down-mixing happens before resampling so only one channel is
// interpolated. A clip already in canonical form is returned unchanged.
func Canonicalize(c Clip) Clip {
	if c.SampleRate == CanonicalSampleRate && c.Channels == CanonicalChannels {
		return c
	}
	slog.Debug("audio: converting clip",
		"from", formatString(c.SampleRate, c.Channels),
		"to", formatString(CanonicalSampleRate, CanonicalChannels),
	)

	pcm := c.PCM
	switch {
	case c.Channels == 2:
		pcm = StereoToMono(pcm)
	case c.Channels > 2:
		pcm = DownmixMono(pcm, c.Channels)
	}
	pcm = ResampleMono16(pcm, c.SampleRate, CanonicalSampleRate)
	return Clip{PCM: pcm, SampleRate: CanonicalSampleRate, Channels: CanonicalChannels}
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		putSample(out[i*2:], clamp16((l+r)/2))
	}
	return out
}

// DownmixMono averages every channel of interleaved multi-channel PCM into
// a single mono channel. A trailing partial frame is dropped.
func DownmixMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[idx:])))
		}
		putSample(out[i*2:], clamp16(sum/int32(channels)))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		}
		putSample(out[i*2:], int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

// PCMToFloat converts 16-bit little-endian PCM to float64 samples normalised
// to [-1.0, 1.0). A trailing odd byte is ignored.
func PCMToFloat(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := range n {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}

// FloatToPCM is the inverse of PCMToFloat. Samples outside [-1, 1] are clipped.
func FloatToPCM(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768.0)
		putSample(out[i*2:], clamp16(v))
	}
	return out
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func putSample(dst []byte, s int16) {
	binary.LittleEndian.PutUint16(dst, uint16(s))
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
