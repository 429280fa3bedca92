// Package llm defines the provider-agnostic interface to the language model:
// intent parsing for automation dispatch and free-form chat generation.
// Concrete providers live in the subpackages (gemini, openaichat); they share
// the JSON extraction and schema validation helpers in this package.
package llm

import "context"

// Message is a single turn in the conversation history.
type Message struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// Intent is one action object produced by the model. Beyond the required
// "action" key the fields are free-form and action-specific; they are decoded
// into typed requests at dispatch time.
type Intent map[string]any

// Reserved action names understood by the dispatcher rather than a module.
const (
	ActionNone        = "none"
	ActionClarify     = "clarify"
	ActionClarifyFile = "clarify_file"
)

// Action returns the intent's action name, or "" if absent or not a string.
func (i Intent) Action() string {
	act, _ := i["action"].(string)
	return act
}

// Args returns every intent field except the action name, as keyword
// arguments for the bound handler.
func (i Intent) Args() map[string]any {
	args := make(map[string]any, len(i))
	for k, v := range i {
		if k == "action" {
			continue
		}
		args[k] = v
	}
	return args
}

// Prompt returns the intent's "prompt" field, falling back to def. Used by
// the clarify/clarify_file actions to carry a follow-up question.
func (i Intent) Prompt(def string) string {
	if p, ok := i["prompt"].(string); ok && p != "" {
		return p
	}
	return def
}

// Client is the interface every LLM backend implements.
//
// ParseIntents must never fail on transport or parse problems: providers
// degrade those to a safe fallback intent list. An error return is reserved
// for failures the caller should surface as "I didn't understand".
// GenerateResponse likewise degrades transport failures to a fixed apology
// string rather than returning an error.
type Client interface {
	ParseIntents(ctx context.Context, userText, actionsPrompt string) ([]Intent, error)
	GenerateResponse(ctx context.Context, prompt string, history []Message, systemPrompt string) (string, error)
}

// NoneIntents is the safe fallback when a provider cannot produce a usable
// intent list: a single "none" intent, which the dispatcher treats as
// "no automation requested".
func NoneIntents() []Intent {
	return []Intent{{"action": ActionNone}}
}

// ClarifyIntents is the alternative fallback used by the OpenAI-compatible
// providers: ask the user what they meant instead of silently chatting.
func ClarifyIntents() []Intent {
	return []Intent{{
		"action": ActionClarify,
		"prompt": "Did you want me to run a command or just chat?",
	}}
}
