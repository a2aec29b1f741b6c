package main

import (
	"bytes"
	"testing"

	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTranscript(t *testing.T) {
	v := chat.View{
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Hi [there]"},
			{Role: models.RoleAssistant, Content: "Hello , world!"},
		},
	}

	got := renderTranscript(v)
	assert.Equal(t, "[red::]You:[-]\nHi [there[]\n\n[green::]Nany:[-]\nHello , world!\n\n", got)
	assert.NotContains(t, got, "Typing...")

	v.Loading = true
	assert.Contains(t, renderTranscript(v), typingIndicator)
}

func TestRenderTranscriptEmpty(t *testing.T) {
	assert.Empty(t, renderTranscript(chat.View{}))
}

func TestEscapeWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := escapeWriter{w: &buf}.Write([]byte("level=INFO msg=[red]x\n"))
	require.NoError(t, err)
	assert.Equal(t, len("level=INFO msg=[red]x\n"), n)
	assert.Equal(t, "level=INFO msg=[red[]x\n", buf.String())
}

func TestEnvOr(t *testing.T) {
	t.Setenv("NANYCHAT_TEST_ENDPOINT", "")
	assert.Equal(t, "fallback", envOr("NANYCHAT_TEST_ENDPOINT", "fallback"))

	t.Setenv("NANYCHAT_TEST_ENDPOINT", "http://localhost:1/chat")
	assert.Equal(t, "http://localhost:1/chat", envOr("NANYCHAT_TEST_ENDPOINT", "fallback"))
}
