package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"iter"
	"log/slog"
	"sync"
	"time"

	nanychat "github.com/MegaGrindStone/nany-chat"
	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/MegaGrindStone/nany-chat/internal/stream"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
)

// LLM represents a large language model interface that provides chat functionality. It accepts a context
// and a sequence of messages, returning an iterator that yields response chunks and potential errors.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Store defines the interface for managing conversation and message persistence.
type Store interface {
	chat.Store

	Conversations(ctx context.Context) ([]models.Conversation, error)
	Conversation(ctx context.Context, id string) (models.Conversation, bool, error)
	AddConversation(ctx context.Context, conv models.Conversation) (string, error)
}

// Main handles the core functionality of the chat application, managing server-sent events,
// HTML templates, the running chats, and the optional LLM behind the chat endpoint.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	llm    LLM
	store  Store
	runner chat.Runner

	chats *chats

	logger *slog.Logger
}

// chats holds the Chat of every conversation opened since startup. Sessions run under ctx, which
// is cancelled on shutdown.
type chats struct {
	mu    sync.Mutex
	byID  map[string]chat.Chat
	ctx   context.Context
	close context.CancelFunc
}

const (
	conversationsSSETopic = "conversations"

	errLoggerKey = "err"
)

var errConversationNotFound = errors.New("conversation not found")

// NewMain creates a new Main instance. Responses are streamed from source, the chat endpoint used
// by every conversation. llm may be nil, in which case HandleChat reports the endpoint as
// unavailable.
func NewMain(llm LLM, store Store, source stream.Source, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		nanychat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Main{
		sseSrv: &sse.Server{
			Provider: &sse.Joe{},
		},
		templates: tmpl,
		markdown:  newMarkdown(),
		llm:       llm,
		store:     store,
		runner:    stream.NewAccumulator(source, logger),
		chats: &chats{
			byID:  make(map[string]chat.Chat),
			ctx:   ctx,
			close: cancel,
		},
		logger: logger.With(slog.String("module", "main")),
	}, nil
}

func conversationTopic(conversationID string) string {
	return fmt.Sprintf("conversation-%s", conversationID)
}

// chat returns the Chat of a stored conversation, creating it on first use.
func (m Main) chat(ctx context.Context, conversationID string) (chat.Chat, error) {
	m.chats.mu.Lock()
	defer m.chats.mu.Unlock()

	if c, ok := m.chats.byID[conversationID]; ok {
		return c, nil
	}

	_, found, err := m.store.Conversation(ctx, conversationID)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !found {
		return chat.Chat{}, errConversationNotFound
	}

	tr, err := chat.NewTranscript(ctx, conversationID, m.store, func(v chat.View) {
		m.publishTranscript(conversationID, v)
	})
	if err != nil {
		return chat.Chat{}, err
	}

	c := chat.New(tr, m.runner, m.logger)
	m.chats.byID[conversationID] = c
	return c, nil
}

// Shutdown gracefully terminates the Main instance. It stops the running chat sessions, broadcasts
// a close message to all connected clients and waits up to 5 seconds for connections to terminate.
// After the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.chats.close()

	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
