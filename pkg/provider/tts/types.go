package tts

// Encoding names an audio container/codec.
type Encoding string

const (
	EncodingMP3      Encoding = "MP3"
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingOggOpus  Encoding = "OGG_OPUS"
	EncodingWAV      Encoding = "WAV"
)

// MIMEType returns the media type for the encoding.
func (e Encoding) MIMEType() string {
	switch e {
	case EncodingMP3:
		return "audio/mpeg"
	case EncodingOggOpus:
		return "audio/ogg"
	case EncodingWAV:
		return "audio/wav"
	case EncodingLinear16:
		return "audio/l16"
	default:
		return "application/octet-stream"
	}
}

// Request is one synthesis call.
type Request struct {
	Text string

	// LanguageCode is the BCP-47 tag of Text (e.g. "ms-MY").
	LanguageCode string

	// Voice is the provider-specific voice identifier. Empty selects the
	// provider default for LanguageCode.
	Voice string

	// SpeakingRate scales speed; 1.0 is normal. Zero means 1.0.
	SpeakingRate float64

	Encoding Encoding
}

// Audio is a synthesised clip.
type Audio struct {
	Data     []byte
	Encoding Encoding
}
