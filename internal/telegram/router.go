// Package telegram adapts the Telegram Bot API to the two roles the core
// needs from it: the inbound message feed for watched channels and the
// interactive query front-end.
package telegram

import (
	"context"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"polymerbot/internal/feed"
)

// Router owns the single long-polling loop and fans updates out: posts from
// watched chats go to the ingestion buffer, everything else is treated as a
// user query.
type Router struct {
	Bot     *telego.Bot
	Feed    *BufferedFeed
	Queries *QueryBot
	Watched map[int64]bool
	Logger  *zap.Logger
}

func (r *Router) Run(ctx context.Context) error {
	if r == nil || r.Bot == nil {
		return nil
	}
	updates, err := r.Bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, upd)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, upd telego.Update) {
	msg := upd.Message
	if msg == nil {
		msg = upd.ChannelPost
	}
	if msg == nil || msg.Text == "" {
		return
	}
	if r.Watched[msg.Chat.ID] {
		if r.Feed != nil {
			r.Feed.Offer(feed.Message{
				ID:        int64(msg.MessageID),
				ChannelID: msg.Chat.ID,
				Text:      msg.Text,
				SentAt:    time.Unix(msg.Date, 0).UTC(),
			})
		}
		return
	}
	if r.Queries == nil {
		return
	}
	if err := r.Queries.Handle(ctx, msg); err != nil && r.Logger != nil {
		r.Logger.Warn("query handling failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err))
	}
}
