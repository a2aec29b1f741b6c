package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// SSE event types for real-time updates.
var (
	conversationsSSEType = sse.Type("conversations")
	transcriptSSEType    = sse.Type("transcript")
)

// HandleMessages submits a user message through HTTP POST requests. It expects a "message" form
// field and an optional "conversation_id" field; without one a new conversation is created.
//
// The user message is appended immediately and the response is streamed from the chat endpoint
// in the background; progress reaches the browser as transcript events on the SSE endpoint. The
// handler answers with the chatbox partial, whose input field is empty.
//
// It returns 405 for other methods, 400 for an empty message, 404 for an unknown conversation and
// 409 while the conversation is still receiving a response.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	var err error

	convID := r.FormValue("conversation_id")
	if convID == "" {
		convID, err = m.newConversation(r.Context(), msg)
		if err != nil {
			m.logger.Error("Failed to create new conversation", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	c, err := m.chat(r.Context(), convID)
	if err != nil {
		if errors.Is(err, errConversationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		m.logger.Error("Failed to open conversation",
			slog.String("conversationID", convID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The session outlives the request, so it runs under the server lifetime context.
	if _, err := c.Submit(m.chats.ctx, msg); err != nil {
		switch {
		case errors.Is(err, chat.ErrBusy):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, chat.ErrEmptyMessage):
			http.Error(w, "Message is required", http.StatusBadRequest)
		default:
			m.logger.Error("Failed to submit message", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	transcript, err := m.messagesData(c.Transcript().View())
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = m.templates.ExecuteTemplate(w, "chatbox", chatboxData{
		ConversationID: convID,
		Transcript:     transcript,
	})
	if err != nil {
		m.logger.Error("Failed to execute chatbox template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) newConversation(ctx context.Context, firstMessage string) (string, error) {
	newConv := models.Conversation{
		ID:    uuid.New().String(),
		Title: models.TitleFromMessage(firstMessage),
	}
	newID, err := m.store.AddConversation(ctx, newConv)
	if err != nil {
		return "", fmt.Errorf("failed to add conversation: %w", err)
	}

	if err := m.publishConversations(ctx, newID); err != nil {
		// The conversation exists; other tabs just miss the refreshed list.
		m.logger.Warn("Failed to publish conversations", slog.String(errLoggerKey, err.Error()))
	}

	return newID, nil
}

func (m Main) publishConversations(ctx context.Context, activeID string) error {
	convs, err := m.store.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get conversations: %w", err)
	}

	divs, err := m.executeTemplate("conversations", m.conversationsData(convs, activeID))
	if err != nil {
		return err
	}

	msg := sse.Message{
		Type: conversationsSSEType,
	}
	msg.AppendData(divs)

	if err := m.sseSrv.Publish(&msg, conversationsSSETopic); err != nil {
		return fmt.Errorf("failed to publish conversations: %w", err)
	}
	return nil
}

// publishTranscript is the observer of every transcript: it renders the messages and pushes them
// to the browsers subscribed to the conversation.
func (m Main) publishTranscript(conversationID string, v chat.View) {
	msg, err := m.transcriptMessage(v)
	if err != nil {
		m.logger.Error("Failed to render transcript",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if err := m.sseSrv.Publish(msg, conversationTopic(conversationID)); err != nil {
		m.logger.Error("Failed to publish transcript",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// transcriptMessage renders a transcript snapshot as a transcript event. Every event carries the
// whole message list, so the last one received is the current state.
func (m Main) transcriptMessage(v chat.View) (*sse.Message, error) {
	data, err := m.messagesData(v)
	if err != nil {
		return nil, err
	}

	html, err := m.executeTemplate("messages", data)
	if err != nil {
		return nil, err
	}

	msg := &sse.Message{
		Type: transcriptSSEType,
	}
	msg.AppendData(html)
	return msg, nil
}
