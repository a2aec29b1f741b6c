package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/MegaGrindStone/nany-chat/internal/stream"
	"github.com/tmaxmax/go-sse"
)

var errorSSEType = sse.Type("error")

// HandleChat is the chat endpoint: GET /chat?message=... answers with an event stream carrying the
// LLM response, one unnamed event per chunk, followed by an event whose data is the [DONE]
// sentinel. A failure of the LLM is sent as an "error" event and ends the stream without the
// sentinel.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if m.llm == nil {
		http.Error(w, "Chat endpoint is not configured", http.StatusServiceUnavailable)
		return
	}

	msg := r.URL.Query().Get("message")
	if strings.TrimSpace(msg) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade connection", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	send := func(e *sse.Message) bool {
		if err := sess.Send(e); err != nil {
			m.logger.Warn("Failed to send event", slog.String(errLoggerKey, err.Error()))
			return false
		}
		if err := sess.Flush(); err != nil {
			m.logger.Warn("Failed to flush event", slog.String(errLoggerKey, err.Error()))
			return false
		}
		return true
	}

	chunks := 0
	for chunk, err := range m.llm.Chat(r.Context(), []models.Message{{Role: models.RoleUser, Content: msg}}) {
		if err != nil {
			m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			e := &sse.Message{Type: errorSSEType}
			e.AppendData(err.Error())
			send(e)
			return
		}
		if chunk == "" {
			continue
		}

		e := &sse.Message{}
		e.AppendData(chunk)
		if !send(e) {
			return
		}
		chunks++
	}

	if r.Context().Err() != nil {
		return
	}

	done := &sse.Message{}
	done.AppendData(stream.Sentinel)
	send(done)

	m.logger.Debug("Chat response sent", slog.Int("chunks", chunks))
}
