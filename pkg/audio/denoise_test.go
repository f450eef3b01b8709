package audio_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/MrWong99/drivewise/pkg/audio"
)

// noisyTone builds one second of 16 kHz audio: 0.3 s of faint noise followed
// by a 440 Hz tone over the same noise.
func noisyTone() audio.Clip {
	const rate = 16000
	rng := rand.New(rand.NewPCG(1, 2))
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = (rng.Float64()*2 - 1) * 0.001
		if i > rate*3/10 {
			samples[i] += 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
		}
	}
	return audio.Clip{PCM: audio.FloatToPCM(samples), SampleRate: rate, Channels: 1}
}

func TestReduceNoise_AttenuatesNoiseKeepsTone(t *testing.T) {
	t.Parallel()

	in := noisyTone()
	out, err := audio.ReduceNoise(in, audio.NoiseParams{})
	if err != nil {
		t.Fatalf("ReduceNoise: %v", err)
	}
	if len(out.PCM) != len(in.PCM) {
		t.Fatalf("length changed: got %d, want %d", len(out.PCM), len(in.PCM))
	}

	// Samples 500-2000 sit in windows that never overlap the tone.
	noiseIn := audio.RMS(in.PCM[1000:4000])
	noiseOut := audio.RMS(out.PCM[1000:4000])
	if noiseOut >= noiseIn {
		t.Errorf("noise RMS not reduced: before %.1f after %.1f", noiseIn, noiseOut)
	}

	toneIn := audio.RMS(in.PCM[16000:28000])
	toneOut := audio.RMS(out.PCM[16000:28000])
	if toneOut < toneIn*0.7 {
		t.Errorf("tone attenuated too much: before %.1f after %.1f", toneIn, toneOut)
	}
}

func TestReduceNoise_Errors(t *testing.T) {
	t.Parallel()

	short := audio.Clip{PCM: make([]byte, 100), SampleRate: 16000, Channels: 1}
	if _, err := audio.ReduceNoise(short, audio.NoiseParams{}); !errors.Is(err, audio.ErrClipTooShort) {
		t.Errorf("short clip: err = %v, want ErrClipTooShort", err)
	}

	stereo := audio.Clip{PCM: make([]byte, 16000), SampleRate: 16000, Channels: 2}
	if _, err := audio.ReduceNoise(stereo, audio.NoiseParams{}); err == nil {
		t.Error("stereo clip: expected error")
	}

	badHop := noisyTone()
	if _, err := audio.ReduceNoise(badHop, audio.NoiseParams{FrameSize: 256, HopSize: 512}); err == nil {
		t.Error("hop > frame: expected error")
	}
}
