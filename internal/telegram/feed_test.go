package telegram

import (
	"context"
	"testing"

	"polymerbot/internal/feed"
)

func TestBufferedFeed_PullFiltersAndPrunes(t *testing.T) {
	f := NewBufferedFeed(0)
	f.Offer(feed.Message{ID: 1, ChannelID: 1, Text: "a"})
	f.Offer(feed.Message{ID: 2, ChannelID: 1, Text: "b"})
	f.Offer(feed.Message{ID: 3, ChannelID: 1, Text: "c"})
	f.Offer(feed.Message{ID: 9, ChannelID: 2, Text: "other channel"})

	out, err := f.Pull(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 2 || out[0].ID != 2 || out[1].ID != 3 {
		t.Fatalf("out=%+v", out)
	}

	// Messages at or below the cursor are gone; newer ones survive a re-pull.
	out, err = f.Pull(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 2 {
		t.Fatalf("re-pull out=%+v", out)
	}

	out, _ = f.Pull(context.Background(), 2, 0)
	if len(out) != 1 || out[0].ID != 9 {
		t.Fatalf("channel 2 out=%+v", out)
	}
}

func TestBufferedFeed_LimitDropsOldest(t *testing.T) {
	f := NewBufferedFeed(2)
	for id := int64(1); id <= 4; id++ {
		f.Offer(feed.Message{ID: id, ChannelID: 1})
	}
	out, err := f.Pull(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 2 || out[0].ID != 3 || out[1].ID != 4 {
		t.Fatalf("out=%+v", out)
	}
}
