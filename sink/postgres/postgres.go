// Package postgres stores readings in the sensors_data table, one row per
// reading, using gorm.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	emulator "github.com/synaptecltd/sensorsim"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultBatchSize = 1000

type Config struct {
	DSN       string `mapstructure:"dsn"`
	BatchSize int    `mapstructure:"batch_size"`
	Migrate   bool   `mapstructure:"migrate"` // create the table if missing
}

// Record is one row of sensors_data. The primary key is (id, timestamp) so the
// table can be turned into a time-partitioned hypertable.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Timestamp time.Time `gorm:"primaryKey;not null;index:idx_sensors_data_sensor_id,priority:2,sort:desc"`
	SensorID  string    `gorm:"size:100;not null;index:idx_sensors_data_sensor_id,priority:1"`
	Type      string    `gorm:"size:50;not null"`
	Category  string    `gorm:"size:50;not null"`
	Value     float64   `gorm:"not null"`
	Unit      string    `gorm:"size:20;not null"`
	Location  string    `gorm:"size:100"`
	Metadata  string    `gorm:"column:sensors_metadata;size:500"`
}

func (Record) TableName() string { return "sensors_data" }

// NewRecord converts a reading to a row with a fresh id.
func NewRecord(r emulator.Reading) Record {
	return Record{
		ID:        uuid.New(),
		Timestamp: r.Timestamp,
		SensorID:  r.SensorID,
		Type:      string(r.Type),
		Category:  string(r.Category),
		Value:     r.Value,
		Unit:      r.Unit,
		Location:  string(r.Location),
	}
}

type Sink struct {
	db        *gorm.DB
	batchSize int
}

// New opens the database and optionally migrates the table.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if cfg.Migrate {
		if err := db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
			return nil, fmt.Errorf("migrating sensors_data: %w", err)
		}
	}
	return NewWithDB(db, cfg.BatchSize), nil
}

// NewWithDB wraps an open database. A batch size of 0 selects the default.
func NewWithDB(db *gorm.DB, batchSize int) *Sink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sink{db: db, batchSize: batchSize}
}

func (s *Sink) Write(ctx context.Context, readings []emulator.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	records := make([]Record, 0, len(readings))
	for _, r := range readings {
		records = append(records, NewRecord(r))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, s.batchSize).Error; err != nil {
		return fmt.Errorf("inserting %d readings: %w", len(records), err)
	}
	return nil
}

func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
