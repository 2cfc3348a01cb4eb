// Package redis keeps the latest reading of every sensor in a Redis hash that
// expires when the sensor stops reporting.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/sensor"
)

const (
	DefaultKeyPrefix = "sensorsim:sensor:"
	DefaultTTL       = time.Hour
)

type Config struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type Sink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects and pings the server.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client. Empty prefix and zero ttl select the
// defaults.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Sink {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sink{client: client, prefix: prefix, ttl: ttl}
}

func (s *Sink) key(sensorID string) string { return s.prefix + sensorID }

// Write stores each sensor's newest reading of the batch in one transaction.
func (s *Sink) Write(ctx context.Context, readings []emulator.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	latest := make(map[string]emulator.Reading, len(readings))
	for _, r := range readings {
		if prev, ok := latest[r.SensorID]; !ok || !r.Timestamp.Before(prev.Timestamp) {
			latest[r.SensorID] = r
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, r := range latest {
			pipe.HSet(ctx, s.key(id), map[string]interface{}{
				"category":  string(r.Category),
				"type":      string(r.Type),
				"value":     r.Value,
				"unit":      r.Unit,
				"location":  string(r.Location),
				"timestamp": r.Timestamp.UTC().Format(time.RFC3339Nano),
			})
			pipe.Expire(ctx, s.key(id), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing latest readings: %w", err)
	}
	return nil
}

// Latest returns the stored reading of a sensor, or redis.Nil when none is held.
func (s *Sink) Latest(ctx context.Context, sensorID string) (emulator.Reading, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sensorID)).Result()
	if err != nil {
		return emulator.Reading{}, err
	}
	if len(fields) == 0 {
		return emulator.Reading{}, redis.Nil
	}

	value, err := strconv.ParseFloat(fields["value"], 64)
	if err != nil {
		return emulator.Reading{}, fmt.Errorf("parsing value of %s: %w", sensorID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"])
	if err != nil {
		return emulator.Reading{}, fmt.Errorf("parsing timestamp of %s: %w", sensorID, err)
	}
	return emulator.Reading{
		SensorID:  sensorID,
		Timestamp: ts,
		Category:  sensor.Category(fields["category"]),
		Type:      sensor.Kind(fields["type"]),
		Value:     value,
		Unit:      fields["unit"],
		Location:  sensor.Location(fields["location"]),
	}, nil
}

func (s *Sink) Close() error { return s.client.Close() }
