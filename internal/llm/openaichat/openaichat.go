// Package openaichat implements llm.Client for every backend that speaks the
// OpenAI chat-completions dialect: Novita, Awan and Scaleway. One provider,
// parameterised by base URL and model.
package openaichat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mcravo/ava/internal/llm"
)

// Base URLs of the supported OpenAI-compatible services.
const (
	NovitaBaseURL   = "https://api.novita.ai/v3/openai"
	AwanBaseURL     = "https://api.awanllm.com/v1"
	ScalewayBaseURL = "https://api.scaleway.ai/v1"
)

// ChatService is the slice of the OpenAI SDK this provider calls.
// *openai.ChatCompletionService satisfies it; tests substitute a mock.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options carries the generation parameters shared by both call paths.
type Options struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int64
}

// Provider implements llm.Client over an OpenAI-compatible endpoint.
type Provider struct {
	chat ChatService
	opts Options
	log  *slog.Logger
}

// New creates a Provider for the given API key and base URL. An empty
// baseURL leaves the SDK pointing at the OpenAI API itself.
func New(apiKey, baseURL string, opts Options, log *slog.Logger) *Provider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(reqOpts...)
	return &Provider{chat: &client.Chat.Completions, opts: opts, log: log}
}

// NewWithChatService wires an explicit ChatService, used by tests.
func NewWithChatService(chat ChatService, opts Options, log *slog.Logger) *Provider {
	return &Provider{chat: chat, opts: opts, log: log}
}

// NewNovita creates a Provider preset for Novita AI.
func NewNovita(apiKey string, opts Options, log *slog.Logger) *Provider {
	return New(apiKey, NovitaBaseURL, opts, log)
}

// NewAwan creates a Provider preset for Awan LLM.
func NewAwan(apiKey string, opts Options, log *slog.Logger) *Provider {
	return New(apiKey, AwanBaseURL, opts, log)
}

// NewScaleway creates a Provider preset for Scaleway Generative APIs.
func NewScaleway(apiKey string, opts Options, log *slog.Logger) *Provider {
	return New(apiKey, ScalewayBaseURL, opts, log)
}

// ParseIntents asks the model for a JSON intent array. Unlike the Gemini
// provider, failures here degrade to a clarification intent so the user is
// asked what they meant instead of being answered conversationally.
func (p *Provider) ParseIntents(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error) {
	system := llm.BaseSystemParser
	if actionsPrompt != "" {
		system += actionsPrompt
	}

	raw, err := p.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(userText),
	})
	if err != nil {
		p.log.Error("intent call failed", "error", err)
		return llm.ClarifyIntents(), nil
	}

	intents := llm.ExtractIntents(raw)
	if err := llm.ValidateIntents(intents); err != nil {
		p.log.Error("intent schema validation failed", "error", err)
		return llm.ClarifyIntents(), nil
	}
	return intents, nil
}

// GenerateResponse produces a conversational reply. History maps onto
// role-based messages; rules travel in the system message. Failures degrade
// to a fixed apology string.
func (p *Provider) GenerateResponse(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = llm.SystemChat
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, turn := range history {
		if turn.Content == "" {
			continue
		}
		switch turn.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	raw, err := p.complete(ctx, messages)
	if err != nil {
		p.log.Error("chat call failed", "error", err)
		return llm.ChatFailureReply, nil
	}
	return strings.TrimSpace(raw), nil
}

// complete runs one chat-completions request and returns the assistant text.
func (p *Provider) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := p.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       p.opts.Model,
		Messages:    messages,
		Temperature: openai.Opt(p.opts.Temperature),
		TopP:        openai.Opt(p.opts.TopP),
		MaxTokens:   openai.Opt(p.opts.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}
