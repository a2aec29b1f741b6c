package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface for interacting with OpenAI's language models.
// Any OpenAI-compatible API can be used by giving its base URL, OpenRouter included.
type OpenAI struct {
	model        string
	systemPrompt string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// OpenRouterBaseURL is the base URL of OpenRouter's OpenAI-compatible API.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL, model name, and system
// prompt. An empty base URL selects the OpenAI API.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(systemPrompt string, messages []models.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return msgs
}

// Chat is a wrapper around the OpenAI chat completion streaming API.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := o.chatRequest(openAIMessages(o.systemPrompt, messages))

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if len(response.Choices) > 1 {
				o.logger.Warn("Received multiple choices, only the first one is used",
					slog.Int("count", len(response.Choices)))
			}

			content := response.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			if !yield(content, nil) {
				return
			}
		}
	}
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}

	return req
}
