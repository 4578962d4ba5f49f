package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polymerbot/internal/models"
	"polymerbot/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- price records ----------------------------------------------------------

func (s *Store) InsertPriceRecord(ctx context.Context, item *models.PriceRecord) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "normalized_key"},
			{Name: "occurred_on"},
			{Name: "channel_id"},
			{Name: "message_id"},
		},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListPriceRecords(ctx context.Context, params repository.ListPriceRecordsParams) ([]models.PriceRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PriceRecord{})
	if key := strings.TrimSpace(params.NormalizedKey); key != "" {
		query = query.Where("normalized_key = ?", key)
	}
	if params.From != nil && !params.From.IsZero() {
		query = query.Where("occurred_on >= ?", *params.From)
	}
	if params.To != nil && !params.To.IsZero() {
		query = query.Where("occurred_on <= ?", *params.To)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "occurred_on")
	limit := normalizeLimit(params.Limit, 1000)
	offset := normalizeOffset(params.Offset)
	var items []models.PriceRecord
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetLatestPriceRecord(ctx context.Context, key string) (*models.PriceRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PriceRecord
	err := s.db.WithContext(ctx).
		Where("normalized_key = ?", key).
		Order("occurred_on desc, ingested_at desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPriceRecordOnDate(ctx context.Context, key string, day time.Time) (*models.PriceRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PriceRecord
	err := s.db.WithContext(ctx).
		Where("normalized_key = ?", key).
		Where("occurred_on = ?", day).
		Order("ingested_at desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) HasItem(ctx context.Context, key string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PriceRecord{}).
		Where("normalized_key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ListItems(ctx context.Context) ([]repository.ItemSummary, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.ItemSummary
	err := s.db.WithContext(ctx).
		Table("price_records").
		Select(`normalized_key,
			(array_agg(raw_label ORDER BY ingested_at DESC))[1] AS display_label,
			max(occurred_on) AS latest_date`).
		Group("normalized_key").
		Order("normalized_key asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) DeletePriceRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("occurred_on < ?", before).
		Delete(&models.PriceRecord{})
	return res.RowsAffected, res.Error
}

// --- ingestion cursors ------------------------------------------------------

func (s *Store) GetCursor(ctx context.Context, channelID int64) (*models.IngestCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var cursor models.IngestCursor
	err := s.db.WithContext(ctx).First(&cursor, "channel_id = ?", channelID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (s *Store) SaveCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.IngestCursor) error {
	if cursor == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_message_id",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(cursor).Error
}

func (s *Store) ListCursors(ctx context.Context) ([]models.IngestCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var cursors []models.IngestCursor
	if err := s.db.WithContext(ctx).Order("channel_id asc").Find(&cursors).Error; err != nil {
		return nil, err
	}
	return cursors, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 5000 {
		return 5000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
