package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polymerbot/internal/models"
	"polymerbot/internal/parser"
	"polymerbot/internal/repository"
)

// DayAggregate summarizes one calendar day of quotes for one item. High, Low,
// Mean and Diff are nil when no record of the day carries a price; in that
// case Status surfaces the quoted availability instead. "No data" is never
// rendered as zero.
type DayAggregate struct {
	Date            time.Time        `json:"date"`
	High            *decimal.Decimal `json:"high"`
	Low             *decimal.Decimal `json:"low"`
	Mean            *decimal.Decimal `json:"mean"`
	Diff            *decimal.Decimal `json:"diff"`
	Status          string           `json:"status,omitempty"`
	Records         int              `json:"records"`
	SourceReference string           `json:"source_reference,omitempty"`
}

// HistoryResult is the answer to a history query. Found distinguishes "no
// such item" from "known item with no data in this window". The offset
// projections may be nil individually; Latest is the fallback regardless of
// requested offsets.
type HistoryResult struct {
	Found        bool                 `json:"found"`
	Term         string               `json:"term"`
	Key          string               `json:"key"`
	DisplayLabel string               `json:"display_label,omitempty"`
	Records      []models.PriceRecord `json:"records"`
	Yesterday    *models.PriceRecord  `json:"yesterday"`
	ThreeDaysAgo *models.PriceRecord  `json:"three_days_ago"`
	OneWeekAgo   *models.PriceRecord  `json:"one_week_ago"`
	Latest       *models.PriceRecord  `json:"latest"`
}

type DailyStatsResult struct {
	Found bool           `json:"found"`
	Term  string         `json:"term"`
	Key   string         `json:"key"`
	Days  []DayAggregate `json:"days"`
}

// CompareRow is one day of a comparison. A nil side means that item has no
// data that day; a row is emitted for every day of the window regardless.
type CompareRow struct {
	Date  time.Time     `json:"date"`
	Left  *DayAggregate `json:"left"`
	Right *DayAggregate `json:"right"`
}

type CompareResult struct {
	LeftTerm   string       `json:"left_term"`
	RightTerm  string       `json:"right_term"`
	LeftKey    string       `json:"left_key"`
	RightKey   string       `json:"right_key"`
	LeftFound  bool         `json:"left_found"`
	RightFound bool         `json:"right_found"`
	Rows       []CompareRow `json:"rows"`
}

// StatsService answers read-only queries against the accumulated record set.
// Any number of queries may run concurrently with ingestion; each sees only
// fully written records.
type StatsService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *StatsService) today() time.Time {
	now := time.Now().UTC()
	if s != nil && s.Now != nil {
		now = s.Now().UTC()
	}
	return dateOnly(now)
}

func (s *StatsService) History(ctx context.Context, term string, days int) (HistoryResult, error) {
	res := HistoryResult{Term: term, Key: parser.Normalize(term)}
	if s == nil || s.Repo == nil || res.Key == "" {
		return res, nil
	}
	known, err := s.Repo.HasItem(ctx, res.Key)
	if err != nil {
		return res, err
	}
	if !known {
		return res, nil
	}
	res.Found = true
	if days <= 0 {
		days = 7
	}
	today := s.today()
	from := today.AddDate(0, 0, -days)
	records, err := s.Repo.ListPriceRecords(ctx, repository.ListPriceRecordsParams{
		NormalizedKey: res.Key,
		From:          &from,
		To:            &today,
		OrderBy:       "occurred_on",
		Asc:           boolPtr(false),
	})
	if err != nil {
		return res, err
	}
	res.Records = records
	if res.Yesterday, err = s.Repo.GetPriceRecordOnDate(ctx, res.Key, today.AddDate(0, 0, -1)); err != nil {
		return res, err
	}
	if res.ThreeDaysAgo, err = s.Repo.GetPriceRecordOnDate(ctx, res.Key, today.AddDate(0, 0, -3)); err != nil {
		return res, err
	}
	if res.OneWeekAgo, err = s.Repo.GetPriceRecordOnDate(ctx, res.Key, today.AddDate(0, 0, -7)); err != nil {
		return res, err
	}
	if res.Latest, err = s.Repo.GetLatestPriceRecord(ctx, res.Key); err != nil {
		return res, err
	}
	if res.Latest != nil {
		res.DisplayLabel = res.Latest.RawLabel
	}
	return res, nil
}

func (s *StatsService) DailyStats(ctx context.Context, term string, days int) (DailyStatsResult, error) {
	res := DailyStatsResult{Term: term, Key: parser.Normalize(term)}
	if s == nil || s.Repo == nil || res.Key == "" {
		return res, nil
	}
	known, err := s.Repo.HasItem(ctx, res.Key)
	if err != nil {
		return res, err
	}
	if !known {
		return res, nil
	}
	res.Found = true
	byDay, order, err := s.dailyAggregates(ctx, res.Key, days)
	if err != nil {
		return res, err
	}
	for _, day := range order {
		res.Days = append(res.Days, *byDay[day])
	}
	return res, nil
}

func (s *StatsService) Compare(ctx context.Context, leftTerm, rightTerm string, days int) (CompareResult, error) {
	res := CompareResult{
		LeftTerm:  leftTerm,
		RightTerm: rightTerm,
		LeftKey:   parser.Normalize(leftTerm),
		RightKey:  parser.Normalize(rightTerm),
	}
	if s == nil || s.Repo == nil {
		return res, nil
	}
	var err error
	if res.LeftKey != "" {
		if res.LeftFound, err = s.Repo.HasItem(ctx, res.LeftKey); err != nil {
			return res, err
		}
	}
	if res.RightKey != "" {
		if res.RightFound, err = s.Repo.HasItem(ctx, res.RightKey); err != nil {
			return res, err
		}
	}
	if !res.LeftFound && !res.RightFound {
		return res, nil
	}
	if days <= 0 {
		days = 7
	}
	left := map[time.Time]*DayAggregate{}
	right := map[time.Time]*DayAggregate{}
	if res.LeftFound {
		if left, _, err = s.dailyAggregates(ctx, res.LeftKey, days); err != nil {
			return res, err
		}
	}
	if res.RightFound {
		if right, _, err = s.dailyAggregates(ctx, res.RightKey, days); err != nil {
			return res, err
		}
	}
	// Both sides align on the full requested axis; a day missing on one or
	// both sides is still emitted.
	today := s.today()
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		res.Rows = append(res.Rows, CompareRow{
			Date:  day,
			Left:  left[day],
			Right: right[day],
		})
	}
	return res, nil
}

// Items lists every known item with its latest quote day.
func (s *StatsService) Items(ctx context.Context) ([]repository.ItemSummary, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListItems(ctx)
}

// dailyAggregates groups the key's records of the last `days` calendar days
// (today inclusive) by occurred_on. Days without records are absent from the
// map, never synthesized. The returned order is most recent first.
func (s *StatsService) dailyAggregates(ctx context.Context, key string, days int) (map[time.Time]*DayAggregate, []time.Time, error) {
	if days <= 0 {
		days = 7
	}
	today := s.today()
	from := today.AddDate(0, 0, -(days - 1))
	records, err := s.Repo.ListPriceRecords(ctx, repository.ListPriceRecordsParams{
		NormalizedKey: key,
		From:          &from,
		To:            &today,
		OrderBy:       "occurred_on",
		Asc:           boolPtr(false),
	})
	if err != nil {
		return nil, nil, err
	}
	grouped := map[time.Time][]models.PriceRecord{}
	var order []time.Time
	for _, rec := range records {
		day := dateOnly(rec.OccurredOn)
		if _, ok := grouped[day]; !ok {
			order = append(order, day)
		}
		grouped[day] = append(grouped[day], rec)
	}
	byDay := make(map[time.Time]*DayAggregate, len(grouped))
	for day, recs := range grouped {
		byDay[day] = buildDayAggregate(day, recs)
	}
	return byDay, order, nil
}

func buildDayAggregate(day time.Time, recs []models.PriceRecord) *DayAggregate {
	agg := &DayAggregate{Date: day, Records: len(recs)}
	var priced []decimal.Decimal
	var latest *models.PriceRecord
	status := ""
	for i := range recs {
		rec := &recs[i]
		if latest == nil || rec.IngestedAt.After(latest.IngestedAt) {
			latest = rec
		}
		if rec.Price != nil {
			priced = append(priced, *rec.Price)
		} else if status == "" {
			status = rec.Status
		}
	}
	if latest != nil {
		agg.SourceReference = latest.SourceReference()
	}
	if len(priced) == 0 {
		// Status-only day: all numeric aggregates stay "no data".
		agg.Status = status
		return agg
	}
	high, low := priced[0], priced[0]
	sum := decimal.Zero
	for _, p := range priced {
		if p.GreaterThan(high) {
			high = p
		}
		if p.LessThan(low) {
			low = p
		}
		sum = sum.Add(p)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(priced)))).Round(2)
	diff := high.Sub(low)
	agg.High, agg.Low, agg.Mean, agg.Diff = &high, &low, &mean, &diff
	return agg
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func boolPtr(v bool) *bool { return &v }
