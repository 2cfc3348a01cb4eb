package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/sensor"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRunDB builds statements without a server and records every INSERT.
func dryRunDB(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=sensorsim dbname=sensorsim sslmode=disable"), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	var statements []string
	err = db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	})
	require.NoError(t, err)
	return db, &statements
}

func readings(n int) []emulator.Reading {
	ts := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	out := make([]emulator.Reading, n)
	for i := range out {
		out[i] = emulator.Reading{
			SensorID:  "heater-supermarket-0a1b2c3d",
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Category:  sensor.Heater,
			Type:      sensor.Analog,
			Value:     19.5,
			Unit:      "C",
			Location:  sensor.Supermarket,
		}
	}
	return out
}

func TestNewRecord(t *testing.T) {
	r := readings(1)[0]
	rec := NewRecord(r)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, r.Timestamp, rec.Timestamp)
	assert.Equal(t, "heater", rec.Category)
	assert.Equal(t, "analog", rec.Type)
	assert.Equal(t, "supermarket", rec.Location)
	assert.Equal(t, "sensors_data", rec.TableName())
}

func TestWriteInsertsInBatches(t *testing.T) {
	db, statements := dryRunDB(t)
	s := NewWithDB(db, 4)

	require.NoError(t, s.Write(context.Background(), readings(10)))
	require.Len(t, *statements, 3)
	for _, stmt := range *statements {
		assert.True(t, strings.HasPrefix(stmt, `INSERT INTO "sensors_data"`), stmt)
		assert.Contains(t, stmt, `"sensors_metadata"`)
	}
}

func TestWriteSkipsEmptyBatch(t *testing.T) {
	db, statements := dryRunDB(t)
	require.NoError(t, NewWithDB(db, 0).Write(context.Background(), nil))
	assert.Empty(t, *statements)
}

func TestNewWithDBDefaultBatchSize(t *testing.T) {
	db, _ := dryRunDB(t)
	assert.Equal(t, DefaultBatchSize, NewWithDB(db, 0).batchSize)
}
