package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"polymerbot/internal/config"
	"polymerbot/internal/feed"
	"polymerbot/internal/models"
	"polymerbot/internal/parser"
	"polymerbot/internal/repository"
)

// ErrRunInProgress is returned when an ingestion run for the channel is
// already active. Overlapping runs would corrupt the cursor guarantee.
var ErrRunInProgress = errors.New("ingestion run already in progress for channel")

// IngestReport is the outcome of one channel run; it is also persisted as
// the cursor row's stats blob.
type IngestReport struct {
	ChannelID       int64 `json:"channel_id"`
	Scanned         int   `json:"scanned"`
	Parsed          int   `json:"parsed"`
	Inserted        int   `json:"inserted"`
	Duplicates      int   `json:"duplicates"`
	FallbackCalls   int   `json:"fallback_calls"`
	SkippedMessages int   `json:"skipped_messages"`
	MaxMessageID    int64 `json:"max_message_id"`
}

// IngestService drives one batch through the pipeline: cursor, feed window,
// extraction cascade, normalization, deduplicated writes, cursor advance.
// The cursor advances only when the whole batch processed without an
// unrecoverable error; individual messages that resist extraction are logged
// and skipped. Re-processing after a held cursor is safe because writes
// deduplicate.
type IngestService struct {
	Repo     repository.Repository
	Feed     feed.Source
	Cascade  parser.Cascade
	Fallback parser.Fallback
	Retry    parser.RetryPolicy
	Channels []int64
	Config   config.IngestConfig
	Logger   *zap.Logger

	mu      sync.Mutex
	running map[int64]struct{}
}

// RunAll runs every configured channel once, sequentially. Channels that are
// already mid-run are skipped, not queued.
func (s *IngestService) RunAll(ctx context.Context) {
	if s == nil {
		return
	}
	for _, channelID := range s.Channels {
		report, err := s.RunChannel(ctx, channelID)
		switch {
		case errors.Is(err, ErrRunInProgress):
			continue
		case err != nil:
			if s.Logger != nil {
				s.Logger.Warn("ingestion run failed",
					zap.Int64("channel_id", channelID),
					zap.Error(err))
			}
		default:
			if s.Logger != nil && report.Scanned > 0 {
				s.Logger.Info("ingestion run complete",
					zap.Int64("channel_id", channelID),
					zap.Int("scanned", report.Scanned),
					zap.Int("inserted", report.Inserted),
					zap.Int("duplicates", report.Duplicates))
			}
		}
	}
}

func (s *IngestService) RunChannel(ctx context.Context, channelID int64) (IngestReport, error) {
	report := IngestReport{ChannelID: channelID}
	if s == nil || s.Repo == nil || s.Feed == nil {
		return report, nil
	}
	if !s.acquire(channelID) {
		return report, ErrRunInProgress
	}
	defer s.release(channelID)

	cursor, err := s.Repo.GetCursor(ctx, channelID)
	if err != nil {
		return report, fmt.Errorf("load cursor for channel %d: %w", channelID, err)
	}
	var afterID int64
	var prevSuccess *time.Time
	if cursor != nil {
		afterID = cursor.LastMessageID
		prevSuccess = cursor.LastSuccessAt
	}
	report.MaxMessageID = afterID

	messages, err := s.Feed.Pull(ctx, channelID, afterID)
	if err != nil {
		s.saveCursorAttempt(ctx, channelID, afterID, prevSuccess, report, err)
		return report, fmt.Errorf("pull channel %d: %w", channelID, err)
	}

	maxID := afterID
	cutoff := s.historyCutoff()
	for _, msg := range messages {
		report.Scanned++
		if msg.ID > maxID {
			maxID = msg.ID
		}
		text := strings.TrimSpace(msg.Text)
		if len([]rune(text)) < s.minMessageLen() {
			continue
		}
		if !cutoff.IsZero() && msg.SentAt.Before(cutoff) {
			continue
		}
		candidates := s.Cascade.Extract(text)
		if len(candidates) == 0 && s.Fallback != nil {
			candidates = s.inferWithRetry(ctx, text, &report)
		}
		if len(candidates) == 0 {
			continue
		}
		occurred := dateOnly(msg.SentAt)
		if explicit, ok := parser.ExtractDate(text); ok {
			occurred = explicit
		}
		for _, cand := range candidates {
			record := &models.PriceRecord{
				RawLabel:      cand.Label,
				NormalizedKey: parser.Normalize(cand.Label),
				Price:         cand.Price,
				Status:        cand.Status,
				OccurredOn:    occurred,
				SourceExcerpt: excerpt(text, s.excerptLen()),
				ChannelID:     msg.ChannelID,
				MessageID:     msg.ID,
				IngestedAt:    time.Now().UTC(),
			}
			inserted, err := s.Repo.InsertPriceRecord(ctx, record)
			if err != nil {
				// Storage failure is fatal for the run; the cursor holds and
				// the whole batch is re-processed next time.
				s.saveCursorAttempt(ctx, channelID, afterID, prevSuccess, report, err)
				return report, fmt.Errorf("insert record for channel %d: %w", channelID, err)
			}
			report.Parsed++
			if inserted {
				report.Inserted++
			} else {
				report.Duplicates++
			}
		}
	}

	report.MaxMessageID = maxID
	now := time.Now().UTC()
	stats, _ := json.Marshal(report)
	state := &models.IngestCursor{
		ChannelID:     channelID,
		LastMessageID: maxID,
		LastSuccessAt: &now,
		LastAttemptAt: &now,
		StatsJSON:     datatypes.JSON(stats),
	}
	if err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.SaveCursorTx(ctx, tx, state)
	}); err != nil {
		return report, fmt.Errorf("save cursor for channel %d: %w", channelID, err)
	}
	return report, nil
}

// inferWithRetry consults the inference fallback for one whole message,
// retrying transient failures with bounded exponential backoff. On
// exhaustion the message degrades to "no extraction"; it never aborts the
// batch.
func (s *IngestService) inferWithRetry(ctx context.Context, text string, report *IngestReport) []parser.Candidate {
	attempts := s.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	report.FallbackCalls++
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if s.Config.FallbackTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.Config.FallbackTimeout)
		}
		candidates, err := s.Fallback.Infer(callCtx, text)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return candidates
		}
		retryable := errors.Is(err, parser.ErrRateLimited) || errors.Is(err, parser.ErrUnavailable)
		if s.Logger != nil {
			s.Logger.Warn("fallback inference failed",
				zap.Int("attempt", attempt),
				zap.Bool("retryable", retryable),
				zap.Error(err))
		}
		if !retryable || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			report.SkippedMessages++
			return nil
		case <-time.After(s.Retry.Delay(attempt)):
		}
	}
	report.SkippedMessages++
	return nil
}

// saveCursorAttempt records a failed run on the cursor row without moving
// LastMessageID or clobbering the previous success timestamp. Best effort.
func (s *IngestService) saveCursorAttempt(ctx context.Context, channelID, lastID int64, prevSuccess *time.Time, report IngestReport, runErr error) {
	now := time.Now().UTC()
	errMsg := runErr.Error()
	stats, _ := json.Marshal(report)
	state := &models.IngestCursor{
		ChannelID:     channelID,
		LastMessageID: lastID,
		LastSuccessAt: prevSuccess,
		LastAttemptAt: &now,
		LastError:     &errMsg,
		StatsJSON:     datatypes.JSON(stats),
	}
	if err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.SaveCursorTx(ctx, tx, state)
	}); err != nil && s.Logger != nil {
		s.Logger.Warn("save cursor attempt failed",
			zap.Int64("channel_id", channelID),
			zap.Error(err))
	}
}

func (s *IngestService) acquire(channelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		s.running = map[int64]struct{}{}
	}
	if _, busy := s.running[channelID]; busy {
		return false
	}
	s.running[channelID] = struct{}{}
	return true
}

func (s *IngestService) release(channelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, channelID)
}

func (s *IngestService) minMessageLen() int {
	if s.Config.MinMessageLen > 0 {
		return s.Config.MinMessageLen
	}
	return 20
}

func (s *IngestService) excerptLen() int {
	if s.Config.ExcerptLen > 0 {
		return s.Config.ExcerptLen
	}
	return 500
}

func (s *IngestService) historyCutoff() time.Time {
	if s.Config.HistoryDays <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().AddDate(0, 0, -s.Config.HistoryDays)
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
