package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spigell/jobfit/internal/advisor"
	"github.com/spigell/jobfit/internal/ai/claude"
	"github.com/spigell/jobfit/internal/ai/gemini"
	"github.com/spigell/jobfit/internal/joblisting"
	"github.com/spigell/jobfit/internal/server"
	"github.com/spigell/jobfit/internal/session"
)

const envPrefix = "JOBFIT"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	AI     AIConfig     `mapstructure:"ai"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

type ServerConfig struct {
	Listen         string        `mapstructure:"listen" validate:"required"`
	SessionTTL     time.Duration `mapstructure:"session-ttl" validate:"gt=0"`
	MaxUploadBytes int64         `mapstructure:"max-upload-bytes" validate:"gt=0"`
}

type FetchConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent       string        `mapstructure:"user-agent"`
	BrowserFallback bool          `mapstructure:"browser-fallback"`
	BrowserMinText  int           `mapstructure:"browser-min-text" validate:"gte=0"`
	BrowserTimeout  time.Duration `mapstructure:"browser-timeout" validate:"gt=0"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=gemini claude"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxLogLength int           `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini       GeminiConfig  `mapstructure:"gemini"`
	Claude       ClaudeConfig  `mapstructure:"claude"`
}

type GeminiConfig struct {
	APIKey      string   `mapstructure:"api-key"`
	APIKeyFile  string   `mapstructure:"api-key-file"`
	Model       string   `mapstructure:"model"`
	Temperature *float32 `mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`
}

type ClaudeConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max-tokens" validate:"gt=0"`
}

type ChatConfig struct {
	FollowUp bool `mapstructure:"follow-up"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", server.DefaultListen)
	v.SetDefault("server.session-ttl", session.DefaultTTL)
	v.SetDefault("server.max-upload-bytes", advisor.DefaultMaxUploadBytes)

	v.SetDefault("fetch.timeout", joblisting.DefaultTimeout)
	v.SetDefault("fetch.user-agent", joblisting.DefaultUserAgent)
	v.SetDefault("fetch.browser-fallback", false)
	v.SetDefault("fetch.browser-min-text", joblisting.DefaultBrowserMinText)
	v.SetDefault("fetch.browser-timeout", joblisting.DefaultBrowserTimeout)

	v.SetDefault("ai.provider", gemini.Provider)
	v.SetDefault("ai.timeout", advisor.DefaultTimeout)
	v.SetDefault("ai.max-log-length", 200)

	// Keys without a default are invisible to AllSettings even when the
	// environment sets them.
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", gemini.DefaultModel)

	v.SetDefault("ai.claude.api-key", "")
	v.SetDefault("ai.claude.api-key-file", "")
	v.SetDefault("ai.claude.model", claude.DefaultModel)
	v.SetDefault("ai.claude.max-tokens", claude.DefaultMaxTokens)

	v.SetDefault("chat.follow-up", true)
}

// bindEnv maps JOBFIT_SECTION_KEY variables onto every key, plus the provider
// variables commonly exported for the SDKs.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"ai.gemini.api-key":      {"JOBFIT_AI_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"ai.gemini.api-key-file": {"JOBFIT_AI_GEMINI_API_KEY_FILE", "GEMINI_API_KEY_FILE"},
		"ai.claude.api-key":      {"JOBFIT_AI_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"ai.claude.api-key-file": {"JOBFIT_AI_CLAUDE_API_KEY_FILE", "ANTHROPIC_API_KEY_FILE"},
	}

	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	return nil
}

// loadConfig decodes and validates the settings collected by v.
func loadConfig(v *viper.Viper) (*Config, error) {
	var config Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
