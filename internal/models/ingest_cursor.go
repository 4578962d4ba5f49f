package models

import (
	"time"

	"gorm.io/datatypes"
)

// IngestCursor tracks, per source channel, the highest message id already
// ingested. LastMessageID never decreases and advances only after a batch
// succeeded end to end.
type IngestCursor struct {
	ChannelID     int64          `gorm:"primaryKey;comment:频道ID"`
	LastMessageID int64          `gorm:"not null;default:0;comment:最近已处理消息ID"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz;comment:最近成功时间"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz;comment:最近尝试时间"`
	LastError     *string        `gorm:"type:text;comment:最近错误信息"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb;comment:本轮统计JSON"`
}

func (IngestCursor) TableName() string {
	return "ingest_cursors"
}
