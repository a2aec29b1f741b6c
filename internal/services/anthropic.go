package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic provides an interface to the Anthropic API for large language model interactions. It implements
// the LLM interface and handles streaming chat completions using Claude models.
type Anthropic struct {
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int
	params       LLMParameters

	endpoint string
	client   *http.Client
}

type anthropicChatRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float32           `json:"temperature,omitempty"`
	TopP          *float32           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	// AnthropicAPIEndpoint is the default base URL of the Anthropic API.
	AnthropicAPIEndpoint = "https://api.anthropic.com/v1"
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name, system prompt
// and maximum token limit. An empty endpoint selects AnthropicAPIEndpoint.
func NewAnthropic(apiKey, endpoint, model, systemPrompt string, maxTokens int, params LLMParameters) Anthropic {
	if endpoint == "" {
		endpoint = AnthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		params:       params,
		endpoint:     endpoint,
		client:       &http.Client{},
	}
}

// Chat streams responses from the Anthropic API for a given sequence of messages. It returns an iterator
// that yields response chunks and potential errors. The context can be used to cancel ongoing requests.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]anthropicMessage, 0, len(messages))
		for _, msg := range messages {
			if msg.Content == "" {
				continue
			}
			msgs = append(msgs, anthropicMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}

		reqBody := anthropicChatRequest{
			Model:         a.model,
			Messages:      msgs,
			Stream:        true,
			System:        a.systemPrompt,
			MaxTokens:     a.maxTokens,
			Temperature:   a.params.Temperature,
			TopP:          a.params.TopP,
			StopSequences: a.params.Stop,
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.endpoint+"/messages", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := a.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			var e anthropicError
			if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			}
			yield("", fmt.Errorf("unexpected status %s: %s", resp.Status, string(body)))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", fmt.Errorf("error unmarshaling error: %w", err))
					return
				}
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case "message_stop":
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					yield("", fmt.Errorf("error unmarshaling response: %w", err))
					return
				}
				if res.Delta.Text == "" {
					continue
				}
				if !yield(res.Delta.Text, nil) {
					return
				}
			default:
				continue
			}
		}
	}
}
