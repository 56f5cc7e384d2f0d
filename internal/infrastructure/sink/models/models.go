package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CandleModel is one stored candle. Uniqueness is on (symbol,
// period_seconds, ts) so a candle for a granularity exists at most once,
// whichever unit delivered it first.
type CandleModel struct {
	Symbol        string    `gorm:"primaryKey;column:symbol;type:varchar(50);not null"`
	PeriodSeconds int64     `gorm:"primaryKey;column:period_seconds;type:bigint;not null"`
	Ts            int64     `gorm:"primaryKey;column:ts;type:bigint;not null"`
	Unit          string    `gorm:"column:unit;type:varchar(20);not null;index"`
	Open          float64   `gorm:"column:open;type:double precision;not null"`
	High          float64   `gorm:"column:high;type:double precision;not null"`
	Low           float64   `gorm:"column:low;type:double precision;not null"`
	Close         float64   `gorm:"column:close;type:double precision;not null"`
	Volume        float64   `gorm:"column:volume;type:double precision;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
}

func (CandleModel) TableName() string {
	return "candles"
}

// RunModel is the audit record of one pipeline run.
type RunModel struct {
	RunID               uuid.UUID `gorm:"primaryKey;column:run_id;type:uuid;not null"`
	UnitID              uuid.UUID `gorm:"column:unit_id;type:uuid;not null;index"`
	Symbol              string    `gorm:"column:symbol;type:varchar(50);not null;index"`
	Unit                string    `gorm:"column:unit;type:varchar(20);not null"`
	PeriodSeconds       int64     `gorm:"column:period_seconds;type:bigint;not null"`
	State               string    `gorm:"column:state;type:varchar(20);not null"`
	Fetched             int       `gorm:"column:fetched;type:integer;not null"`
	FailedWindows       int       `gorm:"column:failed_windows;type:integer;not null"`
	RangesRepaired      int       `gorm:"column:ranges_repaired;type:integer;not null"`
	PointsSynthesized   int       `gorm:"column:points_synthesized;type:integer;not null"`
	DuplicatesDropped   int       `gorm:"column:duplicates_dropped;type:integer;not null"`
	IndeterminateStart  bool      `gorm:"column:indeterminate_start;type:boolean;not null"`
	SkippedFetch        bool      `gorm:"column:skipped_fetch;type:boolean;not null"`
	Repairs             []byte    `gorm:"column:repairs;type:jsonb"`
	RemainingViolations []byte    `gorm:"column:remaining_violations;type:jsonb"`
	StartedAt           time.Time `gorm:"column:started_at;type:timestamp;not null"`
	FinishedAt          time.Time `gorm:"column:finished_at;type:timestamp;not null"`
}

func (RunModel) TableName() string {
	return "pipeline_runs"
}

// Migrate creates or updates the schema for both tables.
func Migrate(dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database for migration: %w", err)
	}
	if err := db.AutoMigrate(&CandleModel{}, &RunModel{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access underlying connection: %w", err)
	}
	return sqlDB.Close()
}
