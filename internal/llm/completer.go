// Package llm provides single-turn text completion clients for OpenAI and Ollama.
package llm

import "context"

// Completer turns a prompt into a completion. Calls are single-turn and keep no
// conversation state.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}
