// Package history caches the conversation on disk so a restarted client
// restores where the user left off. The cache is an implementation detail
// of the client, not a storage engine: one JSON document under a fixed
// path, rewritten whole after each turn.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inviteflow/concierge/client"
	"github.com/inviteflow/concierge/conversation"
)

const recordVersion = "1.0"

// Store persists the conversation under a fixed storage path
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store rooted at ~/.concierge
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewStoreAt(filepath.Join(homeDir, ".concierge"))
}

// NewStoreAt creates a store rooted at the given directory
func NewStoreAt(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		path: filepath.Join(dir, "conversation.json"),
	}, nil
}

// Save writes the conversation to disk, replacing the previous copy
func (s *Store) Save(messages []conversation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := Record{
		Version:   recordVersion,
		UpdatedAt: time.Now(),
		Messages:  make([]Message, len(messages)),
	}
	for i, msg := range messages {
		record.Messages[i] = Message{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// 0600 - the conversation is the user's private history
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}

	return nil
}

// Load restores the cached conversation. A missing cache is not an error;
// it returns an empty history.
func (s *Store) Load() ([]conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}

	messages := make([]conversation.Message, len(record.Messages))
	for i, msg := range record.Messages {
		messages[i] = conversation.Message{
			ID:        msg.ID,
			Role:      client.Role(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}

	return messages, nil
}

// Clear removes the persisted conversation along with the in-memory reset
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove conversation file: %w", err)
	}
	return nil
}
