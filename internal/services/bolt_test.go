package services_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/MegaGrindStone/nany-chat/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoltDB(t *testing.T) services.BoltDB {
	t.Helper()

	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBConversations(t *testing.T) {
	ctx := context.Background()
	db := newBoltDB(t)

	firstID, err := db.AddConversation(ctx, models.Conversation{ID: "a", Title: "First"})
	require.NoError(t, err)
	secondID, err := db.AddConversation(ctx, models.Conversation{ID: "b", Title: "Second"})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	convs, err := db.Conversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Conversation{
		{ID: secondID, Title: "Second"},
		{ID: firstID, Title: "First"},
	}, convs)

	conv, found, err := db.Conversation(ctx, firstID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "First", conv.Title)

	_, found, err = db.Conversation(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltDBMessagesKeepOrder(t *testing.T) {
	ctx := context.Background()
	db := newBoltDB(t)

	convID, err := db.AddConversation(ctx, models.Conversation{ID: "c"})
	require.NoError(t, err)

	var ids []string
	for i := range 12 {
		id, err := db.AddMessage(ctx, convID, models.Message{
			ID:      fmt.Sprintf("m%d", i),
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	msgs, err := db.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 12)
	for i, m := range msgs {
		assert.Equal(t, ids[i], m.ID)
		assert.Equal(t, fmt.Sprintf("message %d", i), m.Content)
	}
}

func TestBoltDBUpdateMessage(t *testing.T) {
	ctx := context.Background()
	db := newBoltDB(t)

	convID, err := db.AddConversation(ctx, models.Conversation{ID: "c"})
	require.NoError(t, err)

	id, err := db.AddMessage(ctx, convID, models.Message{ID: "x", Role: models.RoleAssistant, Content: "Hi"})
	require.NoError(t, err)

	err = db.UpdateMessage(ctx, convID, models.Message{ID: id, Role: models.RoleAssistant, Content: "Hi there"})
	require.NoError(t, err)

	msgs, err := db.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi there", msgs[0].Content)

	err = db.UpdateMessage(ctx, convID, models.Message{ID: "unknown"})
	assert.Error(t, err)

	_, err = db.AddMessage(ctx, "missing", models.Message{ID: "y"})
	assert.Error(t, err)

	msgs, err = db.Messages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
