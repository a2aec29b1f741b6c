package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MegaGrindStone/nany-chat/internal/handlers"
	"github.com/MegaGrindStone/nany-chat/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider   string                 `yaml:"provider"`
	Model      string                 `yaml:"model"`
	Parameters services.LLMParameters `yaml:"parameters"`
}

type config struct {
	Port         string    `yaml:"port"`
	LogLevel     string    `yaml:"logLevel"`
	SystemPrompt string    `yaml:"systemPrompt"`
	Upstream     string    `yaml:"upstream"`
	LLM          llmConfig `yaml:"llm"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
}

const (
	defaultPort         = "8080"
	defaultOllamaHost   = "http://127.0.0.1:11434"
	defaultSystemPrompt = "You are Nany, a friendly and helpful assistant."
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string         `yaml:"port"`
		LogLevel     string         `yaml:"logLevel"`
		SystemPrompt string         `yaml:"systemPrompt"`
		Upstream     string         `yaml:"upstream"`
		LLM          map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.SystemPrompt = rawConfig.SystemPrompt
	c.Upstream = rawConfig.Upstream

	// Without an llm section the server is a front end for an external chat endpoint.
	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai", "openrouter":
		llm = &openAIConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (c config) port() string {
	if c.Port == "" {
		return defaultPort
	}
	return c.Port
}

func (c config) systemPrompt() string {
	if c.SystemPrompt == "" {
		return defaultSystemPrompt
	}
	return c.SystemPrompt
}

// upstream returns the chat endpoint the conversations stream from. By default it is the /chat
// endpoint served by this process.
func (c config) upstream() (string, error) {
	if c.Upstream != "" {
		return c.Upstream, nil
	}
	if c.LLM == nil {
		return "", fmt.Errorf("either upstream or llm must be configured")
	}
	return "http://127.0.0.1:" + c.port() + "/chat", nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (o ollamaConfig) llm(systemPrompt string, _ *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	llm, err := services.NewOllama(host, o.Model, systemPrompt, o.Parameters)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

func (o openAIConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	baseURL := o.BaseURL
	switch o.Provider {
	case "openrouter":
		if apiKey == "" {
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
		if baseURL == "" {
			baseURL = services.OpenRouterBaseURL
		}
	default:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for %s", o.Provider)
	}

	return services.NewOpenAI(apiKey, baseURL, o.Model, systemPrompt, o.Parameters, logger), nil
}

func (a anthropicConfig) llm(systemPrompt string, _ *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, "", a.Model, systemPrompt, a.MaxTokens, a.Parameters), nil
}
