package telegram

import (
	"context"
	"sync"

	"polymerbot/internal/feed"
)

// BufferedFeed accumulates watched-channel posts delivered by the Router and
// serves them through the feed.Source contract. The Bot API cannot page
// channel history, so the long-poll buffer is the only window: messages stay
// buffered until an ingestion run advances the cursor past them.
type BufferedFeed struct {
	mu      sync.Mutex
	pending map[int64][]feed.Message
	limit   int
}

func NewBufferedFeed(limit int) *BufferedFeed {
	if limit <= 0 {
		limit = 10000
	}
	return &BufferedFeed{
		pending: map[int64][]feed.Message{},
		limit:   limit,
	}
}

// Offer appends one delivered message to its channel's buffer. Updates arrive
// in message-id order, so the buffer stays sorted without re-sorting.
func (f *BufferedFeed) Offer(msg feed.Message) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := append(f.pending[msg.ChannelID], msg)
	if len(queue) > f.limit {
		queue = queue[len(queue)-f.limit:]
	}
	f.pending[msg.ChannelID] = queue
}

// Pull returns buffered messages with ID greater than afterID and drops the
// ones at or below it: the cursor has moved past those, they will never be
// asked for again.
func (f *BufferedFeed) Pull(ctx context.Context, channelID int64, afterID int64) ([]feed.Message, error) {
	if f == nil {
		return nil, feed.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.pending[channelID]
	kept := queue[:0]
	var out []feed.Message
	for _, msg := range queue {
		if msg.ID <= afterID {
			continue
		}
		kept = append(kept, msg)
		out = append(out, msg)
	}
	f.pending[channelID] = kept
	return out, nil
}
