// Package messages is the chat message log: its domain types, the
// repository contract and the HTTP API on top of it.
package messages

import (
	"context"
	"time"
)

const (
	DefaultOffset = 0
	DefaultLimit  = 100
	// MaxTextLength is the longest message text accepted, in characters.
	MaxTextLength = 4096
)

// Message is a stored chat message.
type Message struct {
	ID       int64     `json:"messageId"`
	Content  string    `json:"text"`
	UserID   int64     `json:"userId"`
	PostedAt time.Time `json:"postedAt"`
}

// PostMessage is a message about to be stored.
type PostMessage struct {
	Content  string
	UserID   int64
	PostedAt time.Time
}

// Repository persists messages.
type Repository interface {
	// Create stores msg and returns its id.
	Create(ctx context.Context, msg PostMessage) (int64, error)
	// List returns messages newest first.
	List(ctx context.Context, offset, limit int64) ([]Message, error)
	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}
