package history

import (
	"time"
)

// Record is the persisted conversation document. A single conversation is
// cached under a fixed file; there is no multi-session index.
type Record struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Message is the stored shape of a conversation message
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
