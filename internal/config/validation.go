package config

import (
	"fmt"
	"time"
)

var knownProviders = map[string]bool{
	"gemini":   true,
	"novita":   true,
	"awan":     true,
	"scaleway": true,
}

var knownModules = map[string]bool{
	"files":   true,
	"weather": true,
	"gmail":   true,
	"gcal":    true,
	"desktop": true,
}

// Validate checks config values for correctness.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	var errs []string

	// LLM validation
	if !knownProviders[c.LLM.Provider] {
		errs = append(errs, fmt.Sprintf("llm.provider %q must be one of gemini, novita, awan, scaleway", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		errs = append(errs, "llm.top_p must be between 0 and 1")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "llm.max_tokens must be >= 1")
	}
	if c.LLM.RequestTimeoutSeconds < 1 {
		errs = append(errs, "llm.request_timeout_seconds must be >= 1")
	}

	// Modules validation
	for _, name := range c.Modules.Enabled {
		if !knownModules[name] {
			errs = append(errs, fmt.Sprintf("modules.enabled contains unknown module %q", name))
		}
	}

	// Speech validation
	if c.Speech.Rate < 0 {
		errs = append(errs, "speech.rate must be >= 0")
	}
	if c.Speech.Amplitude < 0 || c.Speech.Amplitude > 200 {
		errs = append(errs, "speech.amplitude must be between 0 and 200")
	}

	// Timezone validation
	if c.Timezone != "" && c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("timezone %q is not a valid IANA timezone", c.Timezone))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
