package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one extracted quote, immutable once written. The composite
// unique index enforces that the same item cannot be recorded twice for the
// same day from the same source message; a re-quote of the same item on the
// same day from a different message is a legitimate new row.
type PriceRecord struct {
	ID            uint64           `gorm:"primaryKey;autoIncrement;comment:自增主键"`
	RawLabel      string           `gorm:"type:text;not null;comment:原始品名"`
	NormalizedKey string           `gorm:"type:text;not null;index;uniqueIndex:uniq_price_records_key_day_src;comment:规范化品名键"`
	Price         *decimal.Decimal `gorm:"type:numeric(20,4);comment:报价"`
	Status        string           `gorm:"type:text;not null;comment:状态标签"`
	OccurredOn    time.Time        `gorm:"type:date;not null;index;uniqueIndex:uniq_price_records_key_day_src;comment:报价日期"`
	SourceExcerpt string           `gorm:"type:text;comment:来源消息摘录"`
	ChannelID     int64            `gorm:"not null;uniqueIndex:uniq_price_records_key_day_src;comment:来源频道ID"`
	MessageID     int64            `gorm:"not null;uniqueIndex:uniq_price_records_key_day_src;comment:来源消息ID"`
	IngestedAt    time.Time        `gorm:"type:timestamptz;not null;comment:入库时间"`
}

func (PriceRecord) TableName() string {
	return "price_records"
}

// SourceReference renders the opaque link back to the originating message.
func (r PriceRecord) SourceReference() string {
	return fmt.Sprintf("%d/%d", r.ChannelID, r.MessageID)
}
