package audio

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// NoiseParams controls ReduceNoise. Zero fields take the DefaultNoiseParams value.
type NoiseParams struct {
	// FrameSize is the analysis window length in samples (power of two).
	FrameSize int

	// HopSize is the distance between consecutive windows in samples.
	HopSize int

	// ThresholdDB marks a frame as non-speech when its energy is this many
	// decibels below the loudest frame. Negative.
	ThresholdDB float64

	// PropDecrease is the fraction by which gated bins are attenuated (0–1).
	PropDecrease float64

	// SmoothingMs is the width of the moving average applied to the gate
	// mask along the time axis.
	SmoothingMs int

	// Passes is the number of times the reduction is applied.
	Passes int

	// FallbackNoiseMs is the length of the leading segment used as the noise
	// sample when no frame qualifies as non-speech.
	FallbackNoiseMs int

	// StdThreshold is how many standard deviations above the mean noise
	// magnitude a bin must be to count as signal.
	StdThreshold float64
}

// DefaultNoiseParams are tuned for in-cabin speech at 16 kHz.
var DefaultNoiseParams = NoiseParams{
	FrameSize:       2048,
	HopSize:         512,
	ThresholdDB:     -40,
	PropDecrease:    0.95,
	SmoothingMs:     80,
	Passes:          1,
	FallbackNoiseMs: 500,
	StdThreshold:    1.5,
}

// ErrClipTooShort is returned by ReduceNoise when the clip is shorter than a
// single analysis window.
var ErrClipTooShort = errors.New("audio: clip shorter than one analysis frame")

func (p NoiseParams) withDefaults() NoiseParams {
	d := DefaultNoiseParams
	if p.FrameSize > 0 {
		d.FrameSize = p.FrameSize
	}
	if p.HopSize > 0 {
		d.HopSize = p.HopSize
	}
	if p.ThresholdDB < 0 {
		d.ThresholdDB = p.ThresholdDB
	}
	if p.PropDecrease > 0 {
		d.PropDecrease = math.Min(p.PropDecrease, 1)
	}
	if p.SmoothingMs > 0 {
		d.SmoothingMs = p.SmoothingMs
	}
	if p.Passes > 0 {
		d.Passes = p.Passes
	}
	if p.FallbackNoiseMs > 0 {
		d.FallbackNoiseMs = p.FallbackNoiseMs
	}
	if p.StdThreshold > 0 {
		d.StdThreshold = p.StdThreshold
	}
	return d
}

// ReduceNoise applies energy-gated spectral subtraction to a mono clip. The
// noise profile is estimated from frames whose energy falls ThresholdDB
// below the loudest frame; if there are none, the first FallbackNoiseMs of
// the clip is used instead. Multi-channel clips are rejected.
func ReduceNoise(c Clip, params NoiseParams) (Clip, error) {
	if c.Channels != 1 {
		return c, fmt.Errorf("audio: reduce noise: want mono clip, got %s", formatString(c.SampleRate, c.Channels))
	}
	p := params.withDefaults()
	if p.HopSize > p.FrameSize {
		return c, fmt.Errorf("audio: reduce noise: hop %d exceeds frame %d", p.HopSize, p.FrameSize)
	}

	samples := PCMToFloat(c.PCM)
	if len(samples) < p.FrameSize {
		return c, ErrClipTooShort
	}

	r := newReducer(p, c.SampleRate)
	noise := r.noiseSample(samples)
	mean, std := r.noiseProfile(noise)
	thresh := make([]float64, len(mean))
	for i := range mean {
		thresh[i] = mean[i] + p.StdThreshold*std[i]
	}

	for range p.Passes {
		samples = r.gate(samples, thresh)
	}
	return Clip{PCM: FloatToPCM(samples), SampleRate: c.SampleRate, Channels: 1}, nil
}

type reducer struct {
	p          NoiseParams
	sampleRate int
	fft        *fourier.FFT
	window     []float64
}

func newReducer(p NoiseParams, sampleRate int) *reducer {
	w := make([]float64, p.FrameSize)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(p.FrameSize))
	}
	return &reducer{p: p, sampleRate: sampleRate, fft: fourier.NewFFT(p.FrameSize), window: w}
}

// frameStarts returns the offsets of every full analysis window.
func (r *reducer) frameStarts(n int) []int {
	var starts []int
	for s := 0; s+r.p.FrameSize <= n; s += r.p.HopSize {
		starts = append(starts, s)
	}
	return starts
}

// noiseSample collects the frames considered non-speech.
func (r *reducer) noiseSample(samples []float64) []float64 {
	starts := r.frameStarts(len(samples))
	energies := make([]float64, len(starts))
	maxDB := math.Inf(-1)
	for i, s := range starts {
		var sum float64
		for _, v := range samples[s : s+r.p.FrameSize] {
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(r.p.FrameSize))
		energies[i] = 20 * math.Log10(rms+1e-10)
		maxDB = math.Max(maxDB, energies[i])
	}

	var noise []float64
	for i, s := range starts {
		if energies[i] < maxDB+r.p.ThresholdDB {
			noise = append(noise, samples[s:s+r.p.HopSize]...)
		}
	}
	if len(noise) >= r.p.FrameSize {
		return noise
	}

	n := r.sampleRate * r.p.FallbackNoiseMs / 1000
	n = max(n, r.p.FrameSize)
	n = min(n, len(samples))
	return samples[:n]
}

// noiseProfile returns the per-bin mean and standard deviation of the
// magnitude spectrum of the noise sample.
func (r *reducer) noiseProfile(noise []float64) (mean, std []float64) {
	bins := r.p.FrameSize/2 + 1
	mean = make([]float64, bins)
	sq := make([]float64, bins)
	frame := make([]float64, r.p.FrameSize)
	var coeff []complex128

	starts := r.frameStarts(len(noise))
	for _, s := range starts {
		for i := range frame {
			frame[i] = noise[s+i] * r.window[i]
		}
		coeff = r.fft.Coefficients(coeff, frame)
		for k, c := range coeff {
			m := cmplxAbs(c)
			mean[k] += m
			sq[k] += m * m
		}
	}

	n := float64(len(starts))
	std = make([]float64, bins)
	if n == 0 {
		return mean, std
	}
	for k := range mean {
		mean[k] /= n
		std[k] = math.Sqrt(math.Max(sq[k]/n-mean[k]*mean[k], 0))
	}
	return mean, std
}

// gate runs one STFT → mask → ISTFT pass.
func (r *reducer) gate(samples []float64, thresh []float64) []float64 {
	starts := r.frameStarts(len(samples))
	bins := len(thresh)
	frame := make([]float64, r.p.FrameSize)

	spectra := make([][]complex128, len(starts))
	masks := make([][]float64, len(starts))
	for f, s := range starts {
		for i := range frame {
			frame[i] = samples[s+i] * r.window[i]
		}
		spectra[f] = r.fft.Coefficients(nil, frame)
		masks[f] = make([]float64, bins)
		for k, c := range spectra[f] {
			if cmplxAbs(c) > thresh[k] {
				masks[f][k] = 1
			}
		}
	}

	smoothed := smoothTime(masks, r.smoothingFrames())

	out := make([]float64, len(samples))
	norm := make([]float64, len(samples))
	scale := 1 / float64(r.p.FrameSize)
	for f, s := range starts {
		for k := range spectra[f] {
			gain := 1 - r.p.PropDecrease*(1-smoothed[f][k])
			spectra[f][k] *= complex(gain, 0)
		}
		frame = r.fft.Sequence(frame, spectra[f])
		for i := range frame {
			out[s+i] += frame[i] * scale * r.window[i]
			norm[s+i] += r.window[i] * r.window[i]
		}
	}

	// Samples outside any full window (the tail) pass through untouched.
	for i := range out {
		if norm[i] > 1e-8 {
			out[i] /= norm[i]
		} else {
			out[i] = samples[i]
		}
	}
	return out
}

func (r *reducer) smoothingFrames() int {
	hopMs := float64(r.p.HopSize) * 1000 / float64(r.sampleRate)
	if hopMs <= 0 {
		return 1
	}
	return max(1, int(math.Round(float64(r.p.SmoothingMs)/hopMs)))
}

// smoothTime applies a centred moving average of width w along the time axis.
func smoothTime(masks [][]float64, w int) [][]float64 {
	if w <= 1 || len(masks) == 0 {
		return masks
	}
	half := w / 2
	bins := len(masks[0])
	out := make([][]float64, len(masks))
	for f := range masks {
		out[f] = make([]float64, bins)
		lo, hi := max(0, f-half), min(len(masks)-1, f+half)
		n := float64(hi - lo + 1)
		for k := range bins {
			var sum float64
			for j := lo; j <= hi; j++ {
				sum += masks[j][k]
			}
			out[f][k] = sum / n
		}
	}
	return out
}

func cmplxAbs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }
