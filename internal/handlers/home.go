package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/tmaxmax/go-sse"
)

// HandleHome renders the chat page: the list of stored conversations and the transcript of the
// conversation selected by the "conversation_id" query parameter. Without a selection an empty
// chatbox is shown; the first submitted message creates the conversation.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convs, err := m.store.Conversations(r.Context())
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	convID := r.URL.Query().Get("conversation_id")

	var view chat.View
	if convID != "" {
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
		view = c.Transcript().View()
	}

	transcript, err := m.messagesData(view)
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Conversations: m.conversationsData(convs, convID),
		Chatbox: chatboxData{
			ConversationID: convID,
			Transcript:     transcript,
		},
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSSE subscribes the browser to live updates: the conversation list, and the transcript of
// the conversation given by the "conversation_id" query parameter. A browser subscribing to a
// conversation first receives its current transcript, since the response may have been streaming
// before the subscription was made.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade connection", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Server-sent events unsupported", http.StatusInternalServerError)
		return
	}

	topics := []string{sse.DefaultTopic, conversationsSSETopic}

	convID := r.URL.Query().Get("conversation_id")
	if convID != "" {
		topics = append(topics, conversationTopic(convID))

		if err := m.sendTranscript(r.Context(), sess, convID); err != nil {
			m.logger.Warn("Failed to send current transcript",
				slog.String("conversationID", convID),
				slog.String(errLoggerKey, err.Error()))
		}
	}

	if err := sess.Flush(); err != nil {
		m.logger.Warn("Failed to flush session", slog.String(errLoggerKey, err.Error()))
		return
	}

	err = m.sseSrv.Provider.Subscribe(r.Context(), sse.Subscription{
		Client:      sess,
		LastEventID: sess.LastEventID,
		Topics:      topics,
	})
	if err != nil && !errors.Is(err, sse.ErrProviderClosed) {
		m.logger.Error("Subscription failed", slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) sendTranscript(ctx context.Context, sess *sse.Session, conversationID string) error {
	c, err := m.chat(ctx, conversationID)
	if err != nil {
		return err
	}

	msg, err := m.transcriptMessage(c.Transcript().View())
	if err != nil {
		return err
	}

	if err := sess.Send(msg); err != nil {
		return fmt.Errorf("failed to send transcript: %w", err)
	}
	return nil
}
