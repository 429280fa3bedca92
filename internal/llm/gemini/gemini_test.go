package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/mcravo/ava/internal/llm"
)

// MockGeminiClient implements GeminiClient for testing.
type MockGeminiClient struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	LastModel    string
	LastContents []*genai.Content
	LastConfig   *genai.GenerateContentConfig
}

func (m *MockGeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.LastModel = model
	m.LastContents = contents
	m.LastConfig = config
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return textResponse(""), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  "model",
					Parts: []*genai.Part{genai.NewPartFromText(text)},
				},
			},
		},
	}
}

func testProvider(client GeminiClient) *Provider {
	opts := Options{Model: "models/gemini-2.5-flash", Temperature: 0.7, TopP: 0.9, MaxTokens: 512}
	return New(client, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseIntents_FencedArrayResponse(t *testing.T) {
	client := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("```json\n[{\"action\":\"create_file\",\"filename\":\"notes.txt\"}]\n```"), nil
		},
	}
	p := testProvider(client)

	intents, err := p.ParseIntents(context.Background(), "create notes.txt", "--- actions ---")

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "create_file", intents[0].Action())

	// System instruction carries the base rules plus the dynamic catalogue.
	require.NotNil(t, client.LastConfig.SystemInstruction)
	system := client.LastConfig.SystemInstruction.Parts[0].Text
	assert.Contains(t, system, "automation parser")
	assert.Contains(t, system, "--- actions ---")
	assert.Equal(t, "models/gemini-2.5-flash", client.LastModel)
}

func TestParseIntents_TransportErrorDegradesToNone(t *testing.T) {
	client := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("503 overloaded")
		},
	}
	p := testProvider(client)

	intents, err := p.ParseIntents(context.Background(), "create notes.txt", "")

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, llm.ActionNone, intents[0].Action())
}

func TestParseIntents_SchemaViolationDegradesToNone(t *testing.T) {
	client := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`[{"filename":"notes.txt"}]`), nil
		},
	}
	p := testProvider(client)

	intents, err := p.ParseIntents(context.Background(), "create notes.txt", "")

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, llm.ActionNone, intents[0].Action())
}

func TestParseIntents_UnparsableResponseYieldsEmpty(t *testing.T) {
	client := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("I am unable to help with that."), nil
		},
	}
	p := testProvider(client)

	intents, err := p.ParseIntents(context.Background(), "gibberish", "")

	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestGenerateResponse_MapsHistoryRoles(t *testing.T) {
	client := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("  Hello!  "), nil
		},
	}
	p := testProvider(client)
	history := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}

	got, err := p.GenerateResponse(context.Background(), "how are you?", history, "")

	require.NoError(t, err)
	assert.Equal(t, "Hello!", got)

	require.Len(t, client.LastContents, 3)
	assert.Equal(t, "user", client.LastContents[0].Role)
	assert.Equal(t, "model", client.LastContents[1].Role)
	assert.Equal(t, "user", client.LastContents[2].Role)
	assert.Equal(t, "how are you?", client.LastContents[2].Parts[0].Text)

	// Empty system prompt falls back to the base chat prompt.
	assert.Equal(t, llm.SystemChat, client.LastConfig.SystemInstruction.Parts[0].Text)
}

func TestGenerateResponse_FailureDegradesToApology(t *testing.T) {
	client := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("connection reset")
		},
	}
	p := testProvider(client)

	got, err := p.GenerateResponse(context.Background(), "hello", nil, "")

	require.NoError(t, err)
	assert.Equal(t, llm.ChatFailureReply, got)
}

func TestSetModel(t *testing.T) {
	client := &MockGeminiClient{}
	p := testProvider(client)

	p.SetModel("models/gemini-2.5-pro")
	_, err := p.ParseIntents(context.Background(), "hi", "")

	require.NoError(t, err)
	assert.Equal(t, "models/gemini-2.5-pro", client.LastModel)
}
