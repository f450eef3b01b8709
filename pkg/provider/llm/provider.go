// Package llm defines the Provider interface for Large Language Model backends.
//
// The pipeline uses an LLM for three single-shot jobs: transcript refinement,
// intent classification, and (optionally) translation. None of them stream or
// call tools, so the surface is a single blocking Complete call.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/drivewise/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is prepended as a system-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last entry is normally the
	// user turn that drives the response.
	Messages []types.ChatMessage

	// Temperature controls output randomness. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int

	// JSONMode asks the backend to constrain output to a JSON object where
	// supported. Callers must still parse defensively.
	JSONMode bool
}

// CompletionResponse is the result of a non-streaming completion.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and blocks until the full response is
	// available or ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// UserPrompt is a convenience for the common single-message request.
func UserPrompt(system, user string) CompletionRequest {
	return CompletionRequest{
		SystemPrompt: system,
		Messages:     []types.ChatMessage{{Role: types.RoleUser, Content: user}},
	}
}
