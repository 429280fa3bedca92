package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcravo/ava/internal/automation"
	"github.com/mcravo/ava/internal/llm"
)

// Fixed user-visible replies for the dispatcher's failure classes.
const (
	replyParseFailure  = "Sorry, I didn't understand. Did you want me to run a command or chat?"
	replyEmptyFallback = "I'm not sure how to respond to that."

	defaultClarifyPrompt     = "Could you clarify your intent?"
	defaultClarifyFilePrompt = "Which file did you mean? Please specify the filename."
)

// Backend is the dispatcher: it owns the conversation history and last-file
// state for one session and runs the per-turn intent loop. It assumes at most
// one in-flight ProcessCommand call at a time; concurrent calls are out of
// contract and it holds no internal locks.
type Backend struct {
	client   llm.Client
	registry *Registry
	log      *slog.Logger

	loc *time.Location
	now func() time.Time

	// Computed once from the registry snapshot; the registry is immutable
	// after startup.
	actionsPrompt string
	chatSystem    string

	history      []llm.Message
	lastFilename string
}

// New creates a Backend bound to an LLM client and a loaded registry.
// loc determines the local timezone used in the context block.
func New(client llm.Client, registry *Registry, loc *time.Location, log *slog.Logger) *Backend {
	if loc == nil {
		loc = time.Local
	}
	return &Backend{
		client:        client,
		registry:      registry,
		log:           log,
		loc:           loc,
		now:           time.Now,
		actionsPrompt: ActionsPrompt(registry),
		chatSystem:    llm.ChatSystemPrompt(registry.Descriptions()),
	}
}

// ProcessCommand runs one user turn: parse intents, dispatch them in order,
// and fold the results (or a conversational fallback) into a single reply.
// Every return value is also appended to the conversation history as the
// assistant's turn.
func (b *Backend) ProcessCommand(ctx context.Context, userText string) string {
	contextPrompt := b.actionsPrompt + ContextBlock(b.now().In(b.loc), b.lastFilename)

	b.history = append(b.history, llm.Message{Role: "user", Content: userText})

	intents, err := b.client.ParseIntents(ctx, userText, contextPrompt)
	if err != nil {
		b.log.Error("intent parsing failed", "error", err)
		// The turn never happened as far as the history is concerned.
		b.history = b.history[:len(b.history)-1]
		return replyParseFailure
	}

	if len(intents) > 0 {
		switch intents[0].Action() {
		case llm.ActionClarify:
			return b.reply(intents[0].Prompt(defaultClarifyPrompt))
		case llm.ActionClarifyFile:
			return b.reply(intents[0].Prompt(defaultClarifyFilePrompt))
		}
	}

	var results []string
	for _, it := range intents {
		act := it.Action()
		if act == llm.ActionNone {
			continue
		}

		desc, ok := b.registry.Lookup(act)
		if !ok {
			b.log.Warn("received unsupported action", "action", act)
			return b.reply(fmt.Sprintf("Sorry, I don't know how to '%s'.", humanise(act)))
		}

		res, err := desc.Action.Handler(ctx, it.Args())
		if err != nil {
			if errors.Is(err, automation.ErrInvalidArgs) {
				b.log.Error("argument mismatch for action", "action", act, "error", err)
				return b.reply(fmt.Sprintf(
					"Sorry, I had trouble executing the command. Missing or incorrect arguments for '%s'.",
					humanise(act)))
			}
			b.log.Error("failed to execute action", "action", act, "error", err)
			return b.reply(fmt.Sprintf("Sorry, I encountered an error while trying to '%s'.", humanise(act)))
		}

		results = append(results, res.Message)
		b.trackLastFile(act, res)
	}

	if len(results) > 0 {
		return b.reply(strings.Join(results, "\n"))
	}

	// No action executed: fall back to conversation. The provider appends
	// the prompt as the final user turn, so pass the history up to (but not
	// including) the message appended above.
	response, err := b.client.GenerateResponse(ctx, userText, b.history[:len(b.history)-1], b.chatSystem)
	if err != nil {
		b.log.Error("chat generation failed", "error", err)
		response = llm.ChatFailureReply
	}
	if response == "" {
		response = replyEmptyFallback
	}
	return b.reply(response)
}

// ClearConversationHistory resets the session's dialogue state.
func (b *Backend) ClearConversationHistory() {
	b.history = nil
	b.log.Info("conversation history cleared")
}

// History returns the conversation history recorded so far.
func (b *Backend) History() []llm.Message {
	return b.history
}

// reply records text as the assistant's turn and returns it.
func (b *Backend) reply(text string) string {
	b.history = append(b.history, llm.Message{Role: "assistant", Content: text})
	return text
}

// trackLastFile updates the last remembered file from a structured result.
// Only file-mutating actions participate; the resource name comes from the
// result rather than from matching reply text.
func (b *Backend) trackLastFile(action string, res automation.Result) {
	if res.Status != automation.StatusOK || res.AffectedResource == "" {
		return
	}
	switch action {
	case "create_file", "write_file", "append_file":
		b.lastFilename = res.AffectedResource
	case "delete_file":
		if b.lastFilename == res.AffectedResource {
			b.lastFilename = ""
		}
	}
}

func humanise(action string) string {
	return strings.ReplaceAll(action, "_", " ")
}
