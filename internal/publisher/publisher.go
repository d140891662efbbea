// Package publisher announces persisted archives to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// Publisher sends one payload to a topic and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ArchiveStored is published after an archive is written to the blob store.
type ArchiveStored struct {
	ID               string    `json:"id"`
	URI              string    `json:"uri"`
	Name             string    `json:"name"`
	Domain           string    `json:"domain"`
	Entries          int       `json:"entries"`
	Skipped          int       `json:"skipped"`
	Bytes            int       `json:"bytes"`
	SHA256           string    `json:"sha256"`
	WithReplacements bool      `json:"withReplacements"`
	StoredAt         time.Time `json:"storedAt"`
}
