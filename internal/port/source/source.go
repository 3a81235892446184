// Package source defines the ports for collaboration signal sources.
package source

import (
	"context"

	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

// MessageSource reads chat messages from a channel.
type MessageSource interface {
	// FetchMessages returns up to limit recent messages, oldest first.
	FetchMessages(ctx context.Context, channel string, limit int) ([]signal.Message, error)
	Configured() bool
}

// DesignSource reads design file metadata and review comments.
type DesignSource interface {
	FetchFile(ctx context.Context, fileKey string) (*signal.DesignFile, error)
	FetchComments(ctx context.Context, fileKey string) ([]signal.Comment, error)
	Configured() bool
}

// Checker verifies credentials against the remote service and returns the
// authenticated identity (bot user, account email).
type Checker interface {
	Check(ctx context.Context) (string, error)
}
