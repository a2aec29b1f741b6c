package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MegaGrindStone/nany-chat/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg config)
	}{
		{
			name: "Ollama",
			yaml: `
port: "9000"
logLevel: debug
llm:
  provider: ollama
  model: llama3
  host: http://ollama:11434
  parameters:
    temperature: 0.5
`,
			check: func(t *testing.T, cfg config) {
				o, ok := cfg.LLM.(*ollamaConfig)
				require.True(t, ok)
				assert.Equal(t, "llama3", o.Model)
				assert.Equal(t, "http://ollama:11434", o.Host)
				require.NotNil(t, o.Parameters.Temperature)
				assert.InDelta(t, 0.5, *o.Parameters.Temperature, 0.0001)
				assert.Equal(t, "9000", cfg.port())

				upstream, err := cfg.upstream()
				require.NoError(t, err)
				assert.Equal(t, "http://127.0.0.1:9000/chat", upstream)
			},
		},
		{
			name: "OpenRouter",
			yaml: `
llm:
  provider: openrouter
  model: meta-llama/llama-3-8b-instruct
  apiKey: key
`,
			check: func(t *testing.T, cfg config) {
				o, ok := cfg.LLM.(*openAIConfig)
				require.True(t, ok)
				assert.Equal(t, "openrouter", o.Provider)
				assert.Equal(t, "key", o.APIKey)

				llm, err := o.llm(cfg.systemPrompt(), slog.New(slog.NewTextHandler(io.Discard, nil)))
				require.NoError(t, err)
				assert.IsType(t, services.OpenAI{}, llm)
			},
		},
		{
			name: "Anthropic",
			yaml: `
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  maxTokens: 1024
`,
			check: func(t *testing.T, cfg config) {
				a, ok := cfg.LLM.(*anthropicConfig)
				require.True(t, ok)
				assert.Equal(t, 1024, a.MaxTokens)
			},
		},
		{
			name: "External upstream only",
			yaml: `
upstream: http://127.0.0.1:5000/chat
`,
			check: func(t *testing.T, cfg config) {
				assert.Nil(t, cfg.LLM)
				assert.Equal(t, defaultPort, cfg.port())
				assert.Equal(t, defaultSystemPrompt, cfg.systemPrompt())

				upstream, err := cfg.upstream()
				require.NoError(t, err)
				assert.Equal(t, "http://127.0.0.1:5000/chat", upstream)
			},
		},
		{
			name:    "Missing provider",
			yaml:    "llm:\n  model: x\n",
			wantErr: true,
		},
		{
			name:    "Unknown provider",
			yaml:    "llm:\n  provider: nope\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config
			err := yaml.Unmarshal([]byte(tt.yaml), &cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	_, err := config{}.upstream()
	assert.Error(t, err)

	_, err = config{LogLevel: "loud"}.logLevel()
	assert.Error(t, err)

	level, err := config{LogLevel: "warn"}.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ollamaConfig{}.llm("", nil)
	assert.Error(t, err)

	_, err = anthropicConfig{BaseLLMConfig: BaseLLMConfig{Model: "claude"}}.llm("", nil)
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "")
	_, err = openAIConfig{BaseLLMConfig: BaseLLMConfig{Provider: "openai", Model: "gpt"}}.llm("", nil)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\nupstream: http://localhost:5000/chat\n"), 0600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
