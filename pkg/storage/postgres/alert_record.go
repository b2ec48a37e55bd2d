package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertRecord is one z-score breach written to the audit table.
type AlertRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CycleID uint64 `gorm:"not null"`

	// pair lookup, newest first
	SymbolX  string    `gorm:"type:text;not null;index:idx_alert_pair_raised,priority:1"`
	SymbolY  string    `gorm:"type:text;not null;index:idx_alert_pair_raised,priority:2"`
	RaisedAt time.Time `gorm:"not null;index:idx_alert_pair_raised,priority:3;index:idx_alert_raised_at"`

	Timeframe string `gorm:"type:varchar(10);not null"`

	ZScore     float64 `gorm:"type:double precision;not null"`
	Threshold  float64 `gorm:"type:double precision;not null"`
	HedgeRatio float64 `gorm:"type:double precision;not null"`

	Message string `gorm:"type:text;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (AlertRecord) TableName() string {
	return "pair_alert"
}

// BeforeCreate assigns a random ID when none is set.
func (r *AlertRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
