package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcravo/ava/internal/automation"
	"github.com/mcravo/ava/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockClient implements llm.Client for testing.
type MockClient struct {
	ParseIntentsFunc     func(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error)
	GenerateResponseFunc func(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error)

	ParseCalls    int
	GenerateCalls int
	LastContext   string
}

func (m *MockClient) ParseIntents(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error) {
	m.ParseCalls++
	m.LastContext = actionsPrompt
	if m.ParseIntentsFunc != nil {
		return m.ParseIntentsFunc(ctx, userText, actionsPrompt)
	}
	return llm.NoneIntents(), nil
}

func (m *MockClient) GenerateResponse(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
	m.GenerateCalls++
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, history, systemPrompt)
	}
	return "chat reply", nil
}

// stubModule implements automation.Module for testing.
type stubModule struct {
	description string
	actions     map[string]automation.Action
}

func (s *stubModule) Description() string                    { return s.description }
func (s *stubModule) Actions() map[string]automation.Action { return s.actions }

func intentsClient(intents ...llm.Intent) *MockClient {
	return &MockClient{
		ParseIntentsFunc: func(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error) {
			return intents, nil
		},
	}
}

func newTestBackend(t *testing.T, client llm.Client, modules ...automation.Module) *Backend {
	t.Helper()
	reg := NewRegistry(testLogger())
	for _, m := range modules {
		reg.Register(m)
	}
	b := New(client, reg, time.UTC, testLogger())
	b.now = func() time.Time { return time.Date(2025, 7, 10, 15, 30, 0, 0, time.UTC) }
	return b
}

func TestProcessCommand_OnlyNoneIntents_FallsBackToChatExactlyOnce(t *testing.T) {
	handlerCalls := 0
	module := &stubModule{
		description: "test module",
		actions: map[string]automation.Action{
			"create_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				handlerCalls++
				return automation.OK("done"), nil
			}},
		},
	}
	client := intentsClient(llm.Intent{"action": "none"}, llm.Intent{"action": "none"})
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "how are you?")

	assert.Equal(t, "chat reply", got)
	assert.Equal(t, 1, client.GenerateCalls)
	assert.Zero(t, handlerCalls)
}

func TestProcessCommand_EmptyIntentList_FallsBackToChat(t *testing.T) {
	client := intentsClient()
	b := newTestBackend(t, client)

	got := b.ProcessCommand(context.Background(), "hello")

	assert.Equal(t, "chat reply", got)
	assert.Equal(t, 1, client.GenerateCalls)
}

func TestProcessCommand_UnsupportedAction(t *testing.T) {
	client := intentsClient(llm.Intent{"action": "launch_rocket"})
	b := newTestBackend(t, client)

	got := b.ProcessCommand(context.Background(), "launch the rocket")

	assert.Equal(t, "Sorry, I don't know how to 'launch rocket'.", got)
}

func TestProcessCommand_AbortsAfterFirstSuccessOnUnsupportedSecond(t *testing.T) {
	var executed []string
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"create_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				executed = append(executed, "create_file")
				return automation.OK("File created: a.txt"), nil
			}},
		},
	}
	client := intentsClient(
		llm.Intent{"action": "create_file", "filename": "a.txt"},
		llm.Intent{"action": "summon_demons"},
	)
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "create a.txt then summon demons")

	// First intent ran, but the turn's reply reflects the unsupported action.
	assert.Equal(t, []string{"create_file"}, executed)
	assert.Equal(t, "Sorry, I don't know how to 'summon demons'.", got)
}

func TestProcessCommand_ParseError(t *testing.T) {
	client := &MockClient{
		ParseIntentsFunc: func(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error) {
			return nil, errors.New("transport exploded")
		},
	}
	b := newTestBackend(t, client)

	got := b.ProcessCommand(context.Background(), "do something")

	assert.Equal(t, "Sorry, I didn't understand. Did you want me to run a command or chat?", got)
	// The failed turn leaves no trace in the history.
	assert.Empty(t, b.History())
}

func TestProcessCommand_ArgumentMismatch(t *testing.T) {
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"write_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				return automation.Result{}, fmt.Errorf("%w: missing filename", automation.ErrInvalidArgs)
			}},
		},
	}
	client := intentsClient(llm.Intent{"action": "write_file"})
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "write the file")

	assert.Equal(t,
		"Sorry, I had trouble executing the command. Missing or incorrect arguments for 'write file'.",
		got)
}

func TestProcessCommand_ExecutionFailure(t *testing.T) {
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"delete_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				return automation.Result{}, errors.New("permission denied")
			}},
		},
	}
	client := intentsClient(
		llm.Intent{"action": "delete_file", "filename": "a.txt"},
		llm.Intent{"action": "delete_file", "filename": "b.txt"},
	)
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "delete both files")

	assert.Equal(t, "Sorry, I encountered an error while trying to 'delete file'.", got)
}

func TestProcessCommand_EndToEndCreateFile(t *testing.T) {
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"create_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				require.Equal(t, "notes.txt", args["filename"])
				return automation.OKResource("File created: notes.txt", "notes.txt"), nil
			}},
		},
	}
	client := intentsClient(llm.Intent{"action": "create_file", "filename": "notes.txt"})
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "create a file named notes.txt")

	assert.Equal(t, "File created: notes.txt", got)
	assert.Zero(t, client.GenerateCalls)
}

func TestProcessCommand_MultipleResultsJoinedWithNewlines(t *testing.T) {
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"create_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				return automation.OK(fmt.Sprintf("File created: %v", args["filename"])), nil
			}},
		},
	}
	client := intentsClient(
		llm.Intent{"action": "create_file", "filename": "a.txt"},
		llm.Intent{"action": "none"},
		llm.Intent{"action": "create_file", "filename": "b.txt"},
	)
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "create a.txt and b.txt")

	assert.Equal(t, "File created: a.txt\nFile created: b.txt", got)
}

func TestProcessCommand_ClarifyIntentShortCircuits(t *testing.T) {
	handlerCalls := 0
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"create_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				handlerCalls++
				return automation.OK("done"), nil
			}},
		},
	}
	client := intentsClient(llm.Intent{"action": "clarify", "prompt": "Command or chat?"})
	b := newTestBackend(t, client, module)

	got := b.ProcessCommand(context.Background(), "hmm")

	assert.Equal(t, "Command or chat?", got)
	assert.Zero(t, handlerCalls)
	assert.Zero(t, client.GenerateCalls)
}

func TestProcessCommand_ClarifyFileDefaultPrompt(t *testing.T) {
	client := intentsClient(llm.Intent{"action": "clarify_file"})
	b := newTestBackend(t, client)

	got := b.ProcessCommand(context.Background(), "delete it")

	assert.Equal(t, "Which file did you mean? Please specify the filename.", got)
}

func TestProcessCommand_LastFileTracking(t *testing.T) {
	module := &stubModule{
		description: "files",
		actions: map[string]automation.Action{
			"create_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				name := args["filename"].(string)
				return automation.OKResource("File created: "+name, name), nil
			}},
			"delete_file": {Handler: func(ctx context.Context, args map[string]any) (automation.Result, error) {
				name := args["filename"].(string)
				return automation.OKResource("File deleted: "+name, name), nil
			}},
		},
	}
	client := &MockClient{}
	turn := 0
	client.ParseIntentsFunc = func(ctx context.Context, userText, actionsPrompt string) ([]llm.Intent, error) {
		turn++
		switch turn {
		case 1:
			return []llm.Intent{{"action": "create_file", "filename": "notes.txt"}}, nil
		case 2:
			return []llm.Intent{{"action": "delete_file", "filename": "notes.txt"}}, nil
		default:
			return llm.NoneIntents(), nil
		}
	}
	b := newTestBackend(t, client, module)

	b.ProcessCommand(context.Background(), "create notes.txt")
	assert.NotContains(t, client.LastContext, "LAST_REMEMBERED_FILE")

	b.ProcessCommand(context.Background(), "now delete it")
	// The second turn's context carries the file remembered from the first.
	assert.Contains(t, client.LastContext, "LAST_REMEMBERED_FILE: notes.txt")

	b.ProcessCommand(context.Background(), "anything")
	// Deleting the remembered file cleared the pointer again.
	assert.NotContains(t, client.LastContext, "LAST_REMEMBERED_FILE")
}

func TestProcessCommand_ChatFailureDegradesToApology(t *testing.T) {
	client := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
			return "", errors.New("provider down")
		},
	}
	b := newTestBackend(t, client)

	got := b.ProcessCommand(context.Background(), "hello")

	assert.Equal(t, llm.ChatFailureReply, got)
}

func TestProcessCommand_EmptyChatReplyFallback(t *testing.T) {
	client := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
			return "", nil
		},
	}
	b := newTestBackend(t, client)

	got := b.ProcessCommand(context.Background(), "hello")

	assert.Equal(t, "I'm not sure how to respond to that.", got)
}

func TestProcessCommand_HistoryDiscipline(t *testing.T) {
	client := intentsClient(llm.Intent{"action": "none"})
	b := newTestBackend(t, client)

	b.ProcessCommand(context.Background(), "hello there")

	history := b.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.Message{Role: "user", Content: "hello there"}, history[0])
	assert.Equal(t, "assistant", history[1].Role)

	b.ClearConversationHistory()
	assert.Empty(t, b.History())
}

func TestProcessCommand_ChatHistoryExcludesCurrentTurn(t *testing.T) {
	var seenHistory []llm.Message
	client := &MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
			seenHistory = append([]llm.Message{}, history...)
			return "ok", nil
		},
	}
	b := newTestBackend(t, client)

	b.ProcessCommand(context.Background(), "first")
	b.ProcessCommand(context.Background(), "second")

	// On the second turn the generator sees the first exchange but not the
	// in-flight user message (the provider appends it itself).
	require.Len(t, seenHistory, 2)
	assert.Equal(t, "first", seenHistory[0].Content)
	assert.Equal(t, "ok", seenHistory[1].Content)
}
