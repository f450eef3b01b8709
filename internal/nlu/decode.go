package nlu

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/MrWong99/drivewise/pkg/provider/llm"
)

// Fallback replies used when the classifier output is unusable.
const (
	ReplyKnownDefault   = "Okay."
	ReplyUnknownDefault = "Sorry, I'm not sure how to respond."
	ReplyMalformed      = "Sorry, I couldn't process the information structure correctly."
	ReplyUnexpected     = "Sorry, an unexpected error occurred while understanding the structure of the response."
	ReplyEmptyQuery     = "Sorry, I didn't get any translated input to understand."
)

// errNoObject is reported when the output holds no JSON object at all.
var errNoObject = errors.New("no JSON object in classifier output")

// Result is the structured outcome of intent classification.
type Result struct {
	Intent   Intent
	Entities map[string]any

	// Confidence is nil when the classifier gave none or an unusable one.
	Confidence *float64

	// Reply is the classifier's own natural-language answer. Never empty.
	Reply string
}

// Entity returns entities[key] as trimmed text, or "" when absent. Numbers
// and booleans are rendered with their JSON form.
func (r *Result) Entity(key string) string {
	if r == nil {
		return ""
	}
	switch v := r.Entities[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Unknown returns the canonical fallback result carrying reply.
func Unknown(reply string) *Result {
	zero := 0.0
	return &Result{
		Intent:     IntentUnknown,
		Entities:   map[string]any{},
		Confidence: &zero,
		Reply:      reply,
	}
}

// rawResult mirrors the classifier's JSON with every field left untyped so
// each one can be validated on its own.
type rawResult struct {
	Intent     json.RawMessage `json:"intent"`
	Entities   json.RawMessage `json:"entities"`
	Confidence json.RawMessage `json:"confidence"`
	Response   json.RawMessage `json:"response"`
}

// Decode parses free-form classifier output. It never fails: markdown fences
// and surrounding prose are tolerated, and anything that does not decode to
// an object yields [Unknown] with an apology reply.
func Decode(content string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("nlu: decode panicked", "panic", r)
			res = Unknown(ReplyUnexpected)
		}
	}()

	obj, ok := llm.FirstObject(llm.StripMarkdown(content))
	if !ok {
		slog.Warn("nlu: classifier output is not JSON", "err", errNoObject, "output", truncate(content, 200))
		return Unknown(ReplyMalformed)
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		slog.Warn("nlu: decode classifier output", "err", err, "output", truncate(content, 200))
		return Unknown(ReplyMalformed)
	}

	res = &Result{
		Intent:     decodeIntent(raw.Intent),
		Entities:   decodeEntities(raw.Entities),
		Confidence: decodeConfidence(raw.Confidence),
	}
	res.Reply = decodeReply(raw.Response)
	if res.Reply == "" {
		slog.Warn("nlu: classifier output has no usable response", "intent", res.Intent)
		if res.Intent == IntentUnknown {
			res.Reply = ReplyUnknownDefault
		} else {
			res.Reply = ReplyKnownDefault
		}
	}
	return res
}

func decodeIntent(raw json.RawMessage) Intent {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return IntentUnknown
	}
	in := ParseIntent(s)
	if in == IntentUnknown && s != string(IntentUnknown) {
		slog.Warn("nlu: unknown intent label", "intent", s)
	}
	return in
}

func decodeEntities(raw json.RawMessage) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		if len(raw) > 0 && string(raw) != "null" {
			slog.Warn("nlu: entities is not an object", "entities", string(raw))
		}
		return map[string]any{}
	}
	return m
}

// decodeConfidence accepts a number or a numeric string and clamps it into
// [0, 1]. Anything else is nil.
func decodeConfidence(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		v = f
	}
	if math.IsNaN(v) {
		return nil
	}
	v = min(max(v, 0), 1)
	return &v
}

func decodeReply(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
