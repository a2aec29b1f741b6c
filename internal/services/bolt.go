package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MegaGrindStone/nany-chat/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend for persistent storage of
// conversations and their messages.
type BoltDB struct {
	db *bolt.DB
}

var conversationsBucket = []byte("conversations")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return BoltDB{}, fmt.Errorf("failed to create buckets: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func messageBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("conversation-%s", conversationID))
}

// sequencedID prefixes id with a zero-padded sequence so that byte order of keys follows insertion
// order.
func sequencedID(seq uint64, id string) string {
	return fmt.Sprintf("%010d-%s", seq, id)
}

// Conversations retrieves all stored conversations, newest first.
func (b BoltDB) Conversations(context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var conv models.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			convs = append(convs, conv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(convs)
	return convs, nil
}

// AddConversation stores a new conversation and creates its message bucket. The stored ID combines
// a sequence number with the conversation's original ID and is returned.
func (b BoltDB) AddConversation(_ context.Context, conv models.Conversation) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", conversationsBucket)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = sequencedID(seq, conv.ID)
		conv.ID = newID

		_, err = tx.CreateBucketIfNotExists(messageBucketName(conv.ID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return b.Put([]byte(newID), v)
	})
	if err != nil {
		return "", err
	}

	return newID, nil
}

// Conversation retrieves one conversation. The boolean result is false when it doesn't exist.
func (b BoltDB) Conversation(_ context.Context, id string) (models.Conversation, bool, error) {
	var conv models.Conversation
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(v, &conv); err != nil {
			return fmt.Errorf("failed to unmarshal conversation: %w", err)
		}
		return nil
	})
	return conv, found, err
}

// Messages retrieves all messages of the specified conversation in their stored order. An unknown
// conversation has no messages.
func (b BoltDB) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(conversationID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage stores a new message in the specified conversation's message bucket. The stored ID
// combines a sequence number with the message's original ID and is returned.
func (b BoltDB) AddMessage(_ context.Context, conversationID string, message models.Message) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(conversationID))
		if b == nil {
			return fmt.Errorf("conversation %s not found", conversationID)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = sequencedID(seq, message.ID)
		message.ID = newID

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return b.Put([]byte(newID), v)
	})
	if err != nil {
		return "", err
	}

	return newID, nil
}

// UpdateMessage replaces an existing message in the specified conversation's message bucket.
// Updating a message that was never added is an error, so the stored order can't be corrupted by
// a key without a sequence prefix.
func (b BoltDB) UpdateMessage(_ context.Context, conversationID string, message models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(conversationID))
		if b == nil {
			return fmt.Errorf("conversation %s not found", conversationID)
		}

		if b.Get([]byte(message.ID)) == nil {
			return fmt.Errorf("message %s not found", message.ID)
		}

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return b.Put([]byte(message.ID), v)
	})
}
