package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/google/uuid"
)

// Store persists the messages of a conversation. Messages keep their insertion order; AddMessage
// may rewrite the message ID and returns the ID under which the message is stored.
type Store interface {
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error)
	UpdateMessage(ctx context.Context, conversationID string, message models.Message) error
}

// View is an immutable snapshot of a transcript, handed to renderers after every change.
type View struct {
	Messages []models.Message
	Loading  bool
}

// Transcript is the state container of one conversation: the ordered message list and the loading
// flag. All mutations go through its methods; each one replaces the message slice rather than
// modifying it, writes the change through to the Store and notifies the observer.
type Transcript struct {
	mu       sync.Mutex
	messages []models.Message
	loading  bool

	conversationID string
	store          Store
	observer       func(View)
}

// NewTranscript creates a Transcript for the conversation, loading the messages already stored.
// The observer, if not nil, is called with the new View after each mutation, outside of the
// transcript lock.
func NewTranscript(ctx context.Context, conversationID string, store Store, observer func(View)) (*Transcript, error) {
	msgs, err := store.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return &Transcript{
		messages:       msgs,
		conversationID: conversationID,
		store:          store,
		observer:       observer,
	}, nil
}

// ConversationID returns the ID of the conversation the transcript belongs to.
func (t *Transcript) ConversationID() string {
	return t.conversationID
}

// View returns the current snapshot.
func (t *Transcript) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view()
}

// Loading reports whether a response is being awaited.
func (t *Transcript) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// AppendUser appends a user message with the given content and returns it.
func (t *Transcript) AppendUser(ctx context.Context, content string) (models.Message, error) {
	return t.append(ctx, models.RoleUser, content)
}

// AppendError appends the fallback assistant message.
func (t *Transcript) AppendError(ctx context.Context) error {
	_, err := t.append(ctx, models.RoleAssistant, models.FallbackMessage)
	return err
}

// MergeAssistant sets the content of the open assistant message: the last message is replaced when
// it is an assistant message, otherwise a new assistant message is appended.
func (t *Transcript) MergeAssistant(ctx context.Context, content string) error {
	t.mu.Lock()
	last := len(t.messages) - 1
	if last < 0 || t.messages[last].Role != models.RoleAssistant {
		t.mu.Unlock()
		_, err := t.append(ctx, models.RoleAssistant, content)
		return err
	}

	msg := t.messages[last]
	msg.Content = content
	msgs := slices.Clone(t.messages)
	msgs[last] = msg
	t.messages = msgs
	v := t.view()
	t.mu.Unlock()

	t.notify(v)

	if err := t.store.UpdateMessage(ctx, t.conversationID, msg); err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// SetLoading sets the loading flag.
func (t *Transcript) SetLoading(_ context.Context, loading bool) error {
	t.mu.Lock()
	if t.loading == loading {
		t.mu.Unlock()
		return nil
	}
	t.loading = loading
	v := t.view()
	t.mu.Unlock()

	t.notify(v)
	return nil
}

func (t *Transcript) append(ctx context.Context, role models.Role, content string) (models.Message, error) {
	msg := models.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	// The store assigns the final ID, so it is written before the message becomes visible. A
	// failed write still shows the message under its local ID.
	id, storeErr := t.store.AddMessage(ctx, t.conversationID, msg)
	if storeErr == nil {
		msg.ID = id
	}

	t.mu.Lock()
	msgs := make([]models.Message, len(t.messages), len(t.messages)+1)
	copy(msgs, t.messages)
	t.messages = append(msgs, msg)
	v := t.view()
	t.mu.Unlock()

	t.notify(v)

	if storeErr != nil {
		return msg, fmt.Errorf("failed to add message: %w", storeErr)
	}
	return msg, nil
}

func (t *Transcript) view() View {
	return View{
		Messages: t.messages,
		Loading:  t.loading,
	}
}

func (t *Transcript) notify(v View) {
	if t.observer != nil {
		t.observer(v)
	}
}
