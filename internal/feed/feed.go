// Package feed defines the inbound message contract between the chat
// transport and the ingestion pipeline. The pipeline never fetches messages
// itself; it consumes whatever a Source delivers.
package feed

import (
	"context"
	"errors"
	"time"
)

// Message is one raw chat message as handed to the ingestion pipeline.
type Message struct {
	ID        int64
	ChannelID int64
	Text      string
	SentAt    time.Time
}

// ErrUnavailable marks a transient feed failure. The current batch aborts and
// the cursor holds, so the same window is retried on the next run.
var ErrUnavailable = errors.New("feed unavailable")

// Source supplies message batches for a channel.
type Source interface {
	// Pull returns messages with ID greater than afterID, ascending by ID.
	Pull(ctx context.Context, channelID int64, afterID int64) ([]Message, error)
}
