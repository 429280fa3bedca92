package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	LLM     LLMConfig     `json:"llm"`
	Modules ModulesConfig `json:"modules"`
	Speech  SpeechConfig  `json:"speech"`

	// Timezone is the IANA name used for calendar times and the context
	// block, or "Local" for the system timezone.
	Timezone string `json:"timezone"`
}

type LLMConfig struct {
	// Provider selects the backend: "gemini", "novita", "awan" or "scaleway".
	Provider string `json:"provider"`

	GeminiModel   string `json:"gemini_model"`
	NovitaModel   string `json:"novita_model"`
	AwanModel     string `json:"awan_model"`
	ScalewayModel string `json:"scaleway_model"`

	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`

	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

type ModulesConfig struct {
	// Enabled lists the automation modules to load: "files", "weather",
	// "gmail", "gcal", "desktop".
	Enabled []string `json:"enabled"`

	// FilesRoot is the directory relative paths resolve against. Empty means
	// the user's home directory.
	FilesRoot string `json:"files_root"`

	GoogleCredentialsPath string `json:"google_credentials_path"`
	GoogleTokenPath       string `json:"google_token_path"`
}

type SpeechConfig struct {
	Voice     string `json:"voice"`     // espeak-ng voice, e.g. "en-us"
	Rate      int    `json:"rate"`      // words per minute
	Amplitude int    `json:"amplitude"` // 0-200
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:              "gemini",
			GeminiModel:           "models/gemini-2.5-flash",
			NovitaModel:           "meta-llama/llama-3.1-70b-instruct",
			AwanModel:             "Meta-Llama-3.1-70B-Instruct",
			ScalewayModel:         "llama-3.1-70b-instruct",
			Temperature:           0.7,
			TopP:                  0.9,
			MaxTokens:             512,
			RequestTimeoutSeconds: 30,
		},
		Modules: ModulesConfig{
			Enabled: []string{"files", "weather", "desktop"},
		},
		Speech: SpeechConfig{
			Voice:     "en-us",
			Rate:      200,
			Amplitude: 100,
		},
		Timezone: "Local",
	}
}
