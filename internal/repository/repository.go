package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"polymerbot/internal/models"
)

type ListPriceRecordsParams struct {
	NormalizedKey string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
	OrderBy       string
	Asc           *bool
}

// ItemSummary is one distinct item with its latest display label and quote day.
type ItemSummary struct {
	NormalizedKey string    `json:"normalized_key"`
	DisplayLabel  string    `json:"display_label"`
	LatestDate    time.Time `json:"latest_date"`
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// InsertPriceRecord appends one record, enforcing the uniqueness of
	// (normalized_key, occurred_on, channel, message). It returns false with
	// a nil error when an identical row already exists; a skipped duplicate
	// is a normal outcome, not an error.
	InsertPriceRecord(ctx context.Context, item *models.PriceRecord) (bool, error)
	ListPriceRecords(ctx context.Context, params ListPriceRecordsParams) ([]models.PriceRecord, error)
	GetLatestPriceRecord(ctx context.Context, key string) (*models.PriceRecord, error)
	GetPriceRecordOnDate(ctx context.Context, key string, day time.Time) (*models.PriceRecord, error)
	HasItem(ctx context.Context, key string) (bool, error)
	ListItems(ctx context.Context) ([]ItemSummary, error)
	DeletePriceRecordsBefore(ctx context.Context, before time.Time) (int64, error)

	GetCursor(ctx context.Context, channelID int64) (*models.IngestCursor, error)
	SaveCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.IngestCursor) error
	ListCursors(ctx context.Context) ([]models.IngestCursor, error)
}
