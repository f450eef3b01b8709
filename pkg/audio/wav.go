package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedFormat is returned by Decode when the payload is neither a
// 16-bit PCM WAV file nor raw PCM with a declared sample rate.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Decode turns an uploaded payload into a Clip. RIFF/WAVE payloads are parsed
// from their header; anything else is treated as raw 16-bit little-endian PCM
// and requires rawRate > 0.
func Decode(data []byte, rawRate, rawChannels int) (Clip, error) {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return DecodeWAV(data)
	}
	if rawRate <= 0 {
		return Clip{}, fmt.Errorf("%w: not a WAV file and no sample rate declared", ErrUnsupportedFormat)
	}
	if rawChannels <= 0 {
		rawChannels = 1
	}
	if len(data)%(2*rawChannels) != 0 {
		return Clip{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrUnsupportedFormat, len(data), rawChannels)
	}
	return Clip{PCM: data, SampleRate: rawRate, Channels: rawChannels}, nil
}

// DecodeWAV parses a RIFF/WAVE file holding 16-bit integer PCM. Unknown
// chunks (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedFormat)
	}

	var (
		clip    Clip
		haveFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			// Streaming encoders often leave the data size unset.
			if id == "data" {
				end = len(data)
			} else {
				return Clip{}, fmt.Errorf("%w: truncated %q chunk", ErrUnsupportedFormat, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE; bits-per-sample is still authoritative.
			if format != 1 && format != 0xFFFE {
				return Clip{}, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, format)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			if bits := binary.LittleEndian.Uint16(data[body+14:]); bits != bitsPerSample {
				return Clip{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}
			pcm := data[body:end]
			frame := 2 * clip.Channels
			if frame > 0 {
				pcm = pcm[:len(pcm)-len(pcm)%frame]
			}
			clip.PCM = pcm
			if clip.SampleRate <= 0 || clip.Channels <= 0 {
				return Clip{}, fmt.Errorf("%w: invalid fmt %s", ErrUnsupportedFormat, formatString(clip.SampleRate, clip.Channels))
			}
			return clip, nil
		}
		off = end + end%2 // chunks are word aligned
	}
	return Clip{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
}

// EncodeWAV wraps a clip in a standard 44-byte RIFF/WAV header.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	dataSize := len(c.PCM)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], c.PCM)

	return buf
}

// RMS returns the root-mean-square amplitude of 16-bit PCM on the int16 scale.
// An empty or single-byte input returns 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
