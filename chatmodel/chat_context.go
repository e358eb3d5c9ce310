// Package chatmodel carries the conversation session in the context.
package chatmodel

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// ChatContext is the session of one conversation,
// it lives for one process run.
type ChatContext interface {
	// GetChatID returns the session ID
	GetChatID() string
	// StartedAt returns the time the session was created
	StartedAt() time.Time
	// NextTurn increments and returns the turn number
	NextTurn() uint64
	// Turn returns the current turn number
	Turn() uint64
}

type chatContext struct {
	chatID    string
	startedAt time.Time
	turn      atomic.Uint64
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) StartedAt() time.Time {
	return c.startedAt
}

func (c *chatContext) NextTurn() uint64 {
	return c.turn.Add(1)
}

func (c *chatContext) Turn() uint64 {
	return c.turn.Load()
}

// NewChatContext returns a session, a new ID is generated if chatID is empty
func NewChatContext(chatID string) ChatContext {
	return &chatContext{
		chatID:    values.StringsCoalesce(chatID, newChatID()),
		startedAt: time.Now().UTC(),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v := GetChatContext(ctx); v != nil {
		return v.GetChatID()
	}
	return ""
}

func newChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
