// Package nlu implements the intent classification stage.
//
// A [Classifier] sends the translated utterance, a bounded slice of the
// session history and a JSON rendering of the situational context to an
// [llm.Provider], then decodes the free-form answer with [Decode]. Bad model
// output is recovered locally as [IntentUnknown]; a failed model call is a
// fatal stage error because the turn cannot proceed without an intent.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/llm"
	"github.com/MrWong99/drivewise/pkg/types"
)

const (
	defaultTemperature = 0.7
	defaultMaxPairs    = 10
)

const instructionTemplate = `Analyze the user's query considering the conversation history and provided context.
Identify the primary intent from the list: %s.
Extract relevant entities for the intent. Examples:
- get_route: { "destination": "..." }
- send_message: { "recipient_hint": "...", "message_content": "..." }
- check_flood: { "location_hint": "..." } (e.g., "around current location", "on my route")
- ask_gate_info: {} (intent is enough if order context is present)
- reroute_check: {} (intent is enough)
- general_chat: {}
If the intent is unclear or purely conversational, classify as 'general_chat' and provide a natural language response.
If the intent is recognized but lacks necessary entities (e.g., get_route without destination), ask for clarification.

Output ONLY a JSON object with the following structure:
{
  "intent": "...", // One of the listed intents
  "entities": {...}, // Extracted entities as key-value pairs
  "confidence": 0.0_to_1.0, // Your confidence in the intent classification
  "response": "..." // Your natural language response/clarification question/chat reply. Required.
}`

// Context is the situational information rendered into the prompt.
type Context struct {
	Location         *types.Location     `json:"current_location"`
	Order            *types.OrderContext `json:"order_context"`
	Timestamp        time.Time           `json:"timestamp"`
	OriginalLanguage string              `json:"original_language,omitempty"`
}

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithTemperature sets the sampling temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(c *Classifier) { c.temperature = t }
}

// WithMaxHistoryPairs bounds how many user/assistant pairs are sent.
func WithMaxHistoryPairs(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxPairs = n
		}
	}
}

// WithJSONMode asks providers that support it to constrain output to JSON.
// The answer is still decoded defensively.
func WithJSONMode(on bool) Option {
	return func(c *Classifier) { c.jsonMode = on }
}

// Classifier maps utterances to intents. It is safe for concurrent use.
type Classifier struct {
	llm         llm.Provider
	temperature float64
	maxPairs    int
	jsonMode    bool
	instruction string
}

// New returns a [Classifier] backed by provider.
func New(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		llm:         provider,
		temperature: defaultTemperature,
		maxPairs:    defaultMaxPairs,
		instruction: Instruction(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Instruction returns the fixed classifier instruction naming every intent.
func Instruction() string {
	names := make([]string, len(Intents))
	for i, in := range Intents {
		names[i] = string(in)
	}
	return fmt.Sprintf(instructionTemplate, strings.Join(names, ", "))
}

// Classify returns the intent behind query. The result is never nil when err
// is nil. A blank query returns [Unknown] without calling the model.
func (c *Classifier) Classify(ctx context.Context, query string, history []types.ChatMessage, tc Context) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return Unknown(ReplyEmptyQuery), nil
	}

	req, err := c.request(query, history, tc)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.StageClassify, pipeline.KindInternal, err)
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.StageClassify, pipeline.KindUpstream,
			fmt.Errorf("%w: %w", pipeline.ErrClassifierUnavailable, err))
	}

	res := Decode(resp.Content)
	observe.Logger(ctx).Info("nlu: classified",
		"intent", res.Intent,
		"entities", len(res.Entities),
		"prompt_tokens", resp.Usage.PromptTokens,
	)
	return res, nil
}

func (c *Classifier) request(query string, history []types.ChatMessage, tc Context) (llm.CompletionRequest, error) {
	ctxJSON, err := json.Marshal(tc)
	if err != nil {
		return llm.CompletionRequest{}, fmt.Errorf("nlu: encode context: %w", err)
	}

	hist := trimHistory(history, c.maxPairs)
	msgs := make([]types.ChatMessage, 0, len(hist)+1)
	msgs = append(msgs, hist...)
	msgs = append(msgs, types.ChatMessage{
		Role:    types.RoleUser,
		Content: fmt.Sprintf("%s\n\nContext: %s\n\nUser Query: %s", c.instruction, ctxJSON, query),
	})

	return llm.CompletionRequest{
		Messages:    msgs,
		Temperature: c.temperature,
		JSONMode:    c.jsonMode,
	}, nil
}

// trimHistory keeps the newest maxPairs user/assistant pairs.
func trimHistory(history []types.ChatMessage, maxPairs int) []types.ChatMessage {
	if limit := maxPairs * 2; len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}
