package gemini

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/mcravo/ava/internal/llm"
)

// Options carries the generation parameters shared by both call paths.
type Options struct {
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int32
}

// Provider implements llm.Client for Google Gemini.
type Provider struct {
	client GeminiClient
	log    *slog.Logger

	mu   sync.RWMutex
	opts Options
}

// New creates a Provider with the given client and generation options.
func New(client GeminiClient, opts Options, log *slog.Logger) *Provider {
	return &Provider{client: client, opts: opts, log: log}
}

// ParseIntents asks the model to translate user text into a JSON intent
// array. Transport errors and schema violations never propagate: they
// degrade to the safe fallback intent list.
func (p *Provider) ParseIntents(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error) {
	system := llm.BaseSystemParser
	if actionsPrompt != "" {
		system += actionsPrompt
	}

	contents := []*genai.Content{userContent(userText)}

	resp, err := p.client.GenerateContent(ctx, p.model(), contents, p.generateConfig(system))
	if err != nil {
		p.log.Error("gemini intent call failed", "error", err)
		return llm.NoneIntents(), nil
	}

	intents := llm.ExtractIntents(responseText(resp))
	if err := llm.ValidateIntents(intents); err != nil {
		p.log.Error("intent schema validation failed", "error", err)
		return llm.NoneIntents(), nil
	}
	return intents, nil
}

// GenerateResponse produces a conversational reply from the prompt plus the
// session history. Failures degrade to a fixed apology string.
func (p *Provider) GenerateResponse(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = llm.SystemChat
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		contents = append(contents, messageContent(msg))
	}
	contents = append(contents, userContent(prompt))

	resp, err := p.client.GenerateContent(ctx, p.model(), contents, p.generateConfig(systemPrompt))
	if err != nil {
		p.log.Error("gemini chat call failed", "error", err)
		return llm.ChatFailureReply, nil
	}

	return strings.TrimSpace(responseText(resp)), nil
}

// SetModel changes the active model at runtime.
func (p *Provider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Model = model
}

func (p *Provider) model() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opts.Model
}

func (p *Provider) generateConfig(system string) *genai.GenerateContentConfig {
	p.mu.RLock()
	opts := p.opts
	p.mu.RUnlock()

	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		},
		Temperature:     genai.Ptr(opts.Temperature),
		TopP:            genai.Ptr(opts.TopP),
		MaxOutputTokens: opts.MaxTokens,
	}
}

func userContent(text string) *genai.Content {
	return &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(text)},
	}
}

// messageContent converts a history message to Gemini Content format.
// Gemini only knows the "user" and "model" roles.
func messageContent(msg llm.Message) *genai.Content {
	role := "user"
	if msg.Role == "assistant" || msg.Role == "model" {
		role = "model"
	}
	return &genai.Content{
		Role:  role,
		Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}
