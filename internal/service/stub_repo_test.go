package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"polymerbot/internal/feed"
	"polymerbot/internal/models"
	"polymerbot/internal/parser"
	"polymerbot/internal/repository"
)

// stubRepo is an in-memory Repository with the same uniqueness and ordering
// semantics as the gorm store.
type stubRepo struct {
	mu      sync.Mutex
	records []models.PriceRecord
	cursors map[int64]models.IngestCursor
	nextID  uint64

	insertErr error
	cursorErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{cursors: map[int64]models.IngestCursor{}}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) InsertPriceRecord(ctx context.Context, item *models.PriceRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	for _, rec := range s.records {
		if rec.NormalizedKey == item.NormalizedKey &&
			rec.OccurredOn.Equal(item.OccurredOn) &&
			rec.ChannelID == item.ChannelID &&
			rec.MessageID == item.MessageID {
			return false, nil
		}
	}
	s.nextID++
	stored := *item
	stored.ID = s.nextID
	s.records = append(s.records, stored)
	return true, nil
}

func (s *stubRepo) ListPriceRecords(ctx context.Context, params repository.ListPriceRecordsParams) ([]models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PriceRecord
	for _, rec := range s.records {
		if params.NormalizedKey != "" && rec.NormalizedKey != params.NormalizedKey {
			continue
		}
		if params.From != nil && rec.OccurredOn.Before(*params.From) {
			continue
		}
		if params.To != nil && rec.OccurredOn.After(*params.To) {
			continue
		}
		out = append(out, rec)
	}
	asc := params.Asc != nil && *params.Asc
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn) {
			if asc {
				return out[i].OccurredOn.Before(out[j].OccurredOn)
			}
			return out[i].OccurredOn.After(out[j].OccurredOn)
		}
		if asc {
			return out[i].IngestedAt.Before(out[j].IngestedAt)
		}
		return out[i].IngestedAt.After(out[j].IngestedAt)
	})
	return out, nil
}

func (s *stubRepo) GetLatestPriceRecord(ctx context.Context, key string) (*models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.PriceRecord
	for i := range s.records {
		rec := &s.records[i]
		if rec.NormalizedKey != key {
			continue
		}
		if latest == nil ||
			rec.OccurredOn.After(latest.OccurredOn) ||
			(rec.OccurredOn.Equal(latest.OccurredOn) && rec.IngestedAt.After(latest.IngestedAt)) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *stubRepo) GetPriceRecordOnDate(ctx context.Context, key string, day time.Time) (*models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.PriceRecord
	for i := range s.records {
		rec := &s.records[i]
		if rec.NormalizedKey != key || !rec.OccurredOn.Equal(day) {
			continue
		}
		if found == nil || rec.IngestedAt.After(found.IngestedAt) {
			found = rec
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (s *stubRepo) HasItem(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.NormalizedKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) ListItems(ctx context.Context) ([]repository.ItemSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := map[string]*repository.ItemSummary{}
	latestIngest := map[string]time.Time{}
	var order []string
	for _, rec := range s.records {
		sum, ok := byKey[rec.NormalizedKey]
		if !ok {
			sum = &repository.ItemSummary{NormalizedKey: rec.NormalizedKey}
			byKey[rec.NormalizedKey] = sum
			order = append(order, rec.NormalizedKey)
		}
		if rec.OccurredOn.After(sum.LatestDate) {
			sum.LatestDate = rec.OccurredOn
		}
		if rec.IngestedAt.After(latestIngest[rec.NormalizedKey]) {
			latestIngest[rec.NormalizedKey] = rec.IngestedAt
			sum.DisplayLabel = rec.RawLabel
		}
	}
	sort.Strings(order)
	out := make([]repository.ItemSummary, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}

func (s *stubRepo) DeletePriceRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []models.PriceRecord
	var deleted int64
	for _, rec := range s.records {
		if rec.OccurredOn.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

func (s *stubRepo) GetCursor(ctx context.Context, channelID int64) (*models.IngestCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cursors[channelID]
	if !ok {
		return nil, nil
	}
	cp := cur
	return &cp, nil
}

func (s *stubRepo) SaveCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.IngestCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursorErr != nil {
		return s.cursorErr
	}
	s.cursors[cursor.ChannelID] = *cursor
	return nil
}

func (s *stubRepo) ListCursors(ctx context.Context) ([]models.IngestCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.IngestCursor, 0, len(s.cursors))
	for _, cur := range s.cursors {
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

func (s *stubRepo) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *stubRepo) all() []models.PriceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PriceRecord, len(s.records))
	copy(out, s.records)
	return out
}

// stubFeed replays a fixed message slice. With replay set it ignores the
// cursor, as a source that re-delivers already seen messages would.
type stubFeed struct {
	messages []feed.Message
	err      error
	replay   bool
	pulls    int
}

func (f *stubFeed) Pull(ctx context.Context, channelID, afterID int64) ([]feed.Message, error) {
	f.pulls++
	if f.err != nil {
		return nil, f.err
	}
	var out []feed.Message
	for _, msg := range f.messages {
		if msg.ChannelID != channelID {
			continue
		}
		if !f.replay && msg.ID <= afterID {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// blockingFeed parks the first Pull until released, to hold a run open.
type blockingFeed struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingFeed() *blockingFeed {
	return &blockingFeed{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (f *blockingFeed) Pull(ctx context.Context, channelID, afterID int64) ([]feed.Message, error) {
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fallbackReply struct {
	candidates []parser.Candidate
	err        error
}

// stubFallback serves scripted replies; the last reply repeats once the
// script runs out.
type stubFallback struct {
	mu      sync.Mutex
	replies []fallbackReply
	calls   int
}

func (f *stubFallback) Infer(ctx context.Context, text string) ([]parser.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.replies) == 0 {
		return nil, nil
	}
	idx := f.calls - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	reply := f.replies[idx]
	return reply.candidates, reply.err
}

func (f *stubFallback) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
