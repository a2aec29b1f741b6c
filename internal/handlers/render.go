package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time
}

type messagesData struct {
	Messages []message
	Loading  bool
}

type chatboxData struct {
	ConversationID string
	Transcript     messagesData
}

type conversation struct {
	ID    string
	Title string

	Active bool
}

type homePageData struct {
	Conversations []conversation
	Chatbox       chatboxData
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
		),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

// renderContent converts a message content to HTML. Assistant messages are Markdown; raw HTML in
// them is not rendered. User messages are shown as typed.
func (m Main) renderContent(msg models.Message) (template.HTML, error) {
	if msg.Role != models.RoleAssistant {
		return template.HTML("<p>" + template.HTMLEscapeString(msg.Content) + "</p>"), nil
	}

	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(msg.Content), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (m Main) messagesData(v chat.View) (messagesData, error) {
	msgs := make([]message, len(v.Messages))
	for i, msg := range v.Messages {
		content, err := m.renderContent(msg)
		if err != nil {
			return messagesData{}, err
		}
		msgs[i] = message{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   content,
			Timestamp: msg.Timestamp,
		}
	}
	return messagesData{Messages: msgs, Loading: v.Loading}, nil
}

func (m Main) conversationsData(convs []models.Conversation, activeID string) []conversation {
	res := make([]conversation, len(convs))
	for i, c := range convs {
		title := c.Title
		if title == "" {
			title = "New conversation"
		}
		res[i] = conversation{
			ID:     c.ID,
			Title:  title,
			Active: c.ID == activeID,
		}
	}
	return res
}

func (m Main) executeTemplate(name string, data any) (string, error) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return sb.String(), nil
}
