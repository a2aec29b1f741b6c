package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/MegaGrindStone/nany-chat/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicChat(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText []string
		wantErr  string
	}{
		{
			name:   "Streamed deltas",
			status: http.StatusOK,
			body: "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
				"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n" +
				"event: ping\ndata: {\"type\":\"ping\"}\n\n" +
				"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n\n" +
				"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n" +
				"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"late\"}}\n\n",
			wantText: []string{"Hi", " there"},
		},
		{
			name:   "Error event",
			status: http.StatusOK,
			body: "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"A\"}}\n\n" +
				"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n",
			wantText: []string{"A"},
			wantErr:  "anthropic error overloaded_error: Overloaded",
		},
		{
			name:    "Error status",
			status:  http.StatusUnauthorized,
			body:    `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantErr: "anthropic error authentication_error: invalid x-api-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Model     string `json:"model"`
				System    string `json:"system"`
				MaxTokens int    `json:"max_tokens"`
				Stream    bool   `json:"stream"`
				Messages  []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/messages", r.URL.Path)
				assert.Equal(t, "key", r.Header.Get("x-api-key"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

				if tt.status == http.StatusOK {
					w.Header().Set("Content-Type", "text/event-stream")
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			a := services.NewAnthropic("key", srv.URL, "claude", "Be brief.", 256, services.LLMParameters{})

			var texts []string
			var gotErr error
			for text, err := range a.Chat(context.Background(), []models.Message{
				{Role: models.RoleUser, Content: "hello"},
			}) {
				if err != nil {
					gotErr = err
					break
				}
				texts = append(texts, text)
			}

			assert.Equal(t, tt.wantText, texts)
			if tt.wantErr == "" {
				require.NoError(t, gotErr)
			} else {
				require.EqualError(t, gotErr, tt.wantErr)
			}

			assert.Equal(t, "claude", got.Model)
			assert.Equal(t, "Be brief.", got.System)
			assert.Equal(t, 256, got.MaxTokens)
			assert.True(t, got.Stream)
			require.Len(t, got.Messages, 1)
			assert.Equal(t, "user", got.Messages[0].Role)
			assert.Equal(t, "hello", got.Messages[0].Content)
		})
	}
}
