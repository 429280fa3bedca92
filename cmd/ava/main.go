// Package main runs the ava voice assistant as an interactive terminal REPL:
// type a command, the backend resolves it into automation intents or chat,
// and the reply is printed and optionally spoken aloud.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	log "log/slog"

	cli "github.com/spf13/pflag"
	"google.golang.org/genai"

	"github.com/mcravo/ava/internal/automation"
	"github.com/mcravo/ava/internal/automation/desktop"
	"github.com/mcravo/ava/internal/automation/files"
	"github.com/mcravo/ava/internal/automation/gcal"
	"github.com/mcravo/ava/internal/automation/gmail"
	"github.com/mcravo/ava/internal/automation/weather"
	"github.com/mcravo/ava/internal/backend"
	"github.com/mcravo/ava/internal/config"
	"github.com/mcravo/ava/internal/llm"
	"github.com/mcravo/ava/internal/llm/gemini"
	"github.com/mcravo/ava/internal/llm/openaichat"
	"github.com/mcravo/ava/internal/speech"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level (debug, info, warn, error)")
	provider := cli.StringP("provider", "p", "", "Override the configured LLM provider")
	noTTS := cli.Bool("no-tts", false, "Disable spoken replies")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Warn("failed to load config, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if *provider != "" {
		cfg.LLM.Provider = *provider
		if err := cfg.Validate(); err != nil {
			log.Error("invalid provider override", "error", err)
			os.Exit(1)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialise LLM provider", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	registry := backend.LoadRegistry(log.Default(), moduleFactories(ctx, cfg, loc))
	be := backend.New(client, registry, loc, log.Default())

	var queue *speech.Queue
	if !*noTTS {
		queue = speech.NewQueue(&speech.Espeak{
			Voice:     cfg.Speech.Voice,
			Rate:      cfg.Speech.Rate,
			Amplitude: cfg.Speech.Amplitude,
		}, log.Default(), 16)
		defer queue.Close()
	}

	log.Info("assistant ready", "provider", cfg.LLM.Provider, "actions", registry.ActionCount())

	runREPL(ctx, cfg, be, queue)
}

// newLLMClient builds the configured provider. Gemini talks to the native
// API; everything else goes through the OpenAI-compatible chat endpoint.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	compat := openaichat.Options{
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   int64(cfg.LLM.MaxTokens),
	}

	switch cfg.LLM.Provider {
	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
		}
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		return gemini.New(gemini.NewRealGeminiClient(genaiClient), gemini.Options{
			Model:       cfg.LLM.GeminiModel,
			Temperature: float32(cfg.LLM.Temperature),
			TopP:        float32(cfg.LLM.TopP),
			MaxTokens:   int32(cfg.LLM.MaxTokens),
		}, log.Default()), nil

	case "novita":
		apiKey := os.Getenv("NOVITA_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("NOVITA_API_KEY environment variable is required")
		}
		compat.Model = cfg.LLM.NovitaModel
		return openaichat.NewNovita(apiKey, compat, log.Default()), nil

	case "awan":
		apiKey := os.Getenv("AWANLLM_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("AWANLLM_API_KEY environment variable is required")
		}
		compat.Model = cfg.LLM.AwanModel
		return openaichat.NewAwan(apiKey, compat, log.Default()), nil

	case "scaleway":
		apiKey := os.Getenv("SCALEWAY_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("SCALEWAY_API_KEY environment variable is required")
		}
		compat.Model = cfg.LLM.ScalewayModel
		return openaichat.NewScaleway(apiKey, compat, log.Default()), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}
}

// moduleFactories maps the enabled module names to constructors. Failures
// are logged and skipped by LoadRegistry so one broken module never takes
// the assistant down.
func moduleFactories(ctx context.Context, cfg *config.Config, loc *time.Location) []backend.ModuleFactory {
	var factories []backend.ModuleFactory
	for _, name := range cfg.Modules.Enabled {
		switch name {
		case "files":
			root := cfg.Modules.FilesRoot
			factories = append(factories, func() (automation.Module, error) {
				return files.New(root)
			})
		case "weather":
			factories = append(factories, func() (automation.Module, error) {
				return weather.New(os.Getenv("OPENWEATHERMAP_API_KEY"))
			})
		case "gmail":
			factories = append(factories, func() (automation.Module, error) {
				return gmail.New(ctx, cfg.Modules.GoogleCredentialsPath, cfg.Modules.GoogleTokenPath, gcal.Scope)
			})
		case "gcal":
			factories = append(factories, func() (automation.Module, error) {
				return gcal.New(ctx, cfg.Modules.GoogleCredentialsPath, cfg.Modules.GoogleTokenPath, loc, gmail.Scope)
			})
		case "desktop":
			factories = append(factories, func() (automation.Module, error) {
				return desktop.New(), nil
			})
		default:
			log.Warn("unknown module in config, skipping", "module", name)
		}
	}
	return factories
}

func runREPL(ctx context.Context, cfg *config.Config, be *backend.Backend, queue *speech.Queue) {
	fmt.Println(noticeStyle.Render("Type a command, 'clear' to reset the conversation, or 'exit' to quit."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit", line == "quit":
			return
		case line == "clear":
			be.ClearConversationHistory()
			fmt.Println(noticeStyle.Render("Conversation history cleared."))
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.LLM.RequestTimeoutSeconds)*time.Second)
		reply := be.ProcessCommand(turnCtx, line)
		cancel()

		fmt.Println(replyStyle.Render("ava> " + reply))
		if queue != nil {
			queue.Say(reply)
		}
	}
}
