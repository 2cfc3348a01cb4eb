// Package influx writes readings to InfluxDB v2 as points of one measurement.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	emulator "github.com/synaptecltd/sensorsim"
)

const DefaultMeasurement = "sensor_data"

// Config maps the connection details required to reach InfluxDB.
type Config struct {
	URL         string        `mapstructure:"url"`
	Token       string        `mapstructure:"token"`
	Org         string        `mapstructure:"org"`
	Bucket      string        `mapstructure:"bucket"`
	Measurement string        `mapstructure:"measurement"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Sink writes each batch with the blocking write API.
type Sink struct {
	client      influxdb2.Client
	writer      api.WriteAPIBlocking
	measurement string
}

// New connects to InfluxDB and pings it before returning.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctxPing := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctxPing, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	ok, err := client.Ping(ctxPing)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping influxdb: %w", err)
	}
	if !ok {
		client.Close()
		return nil, errors.New("influxdb ping failed")
	}

	s := NewWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Measurement)
	s.client = client
	return s, nil
}

// NewWithWriter wraps an existing write API.
func NewWithWriter(w api.WriteAPIBlocking, measurement string) *Sink {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	return &Sink{writer: w, measurement: measurement}
}

func (s *Sink) Write(ctx context.Context, readings []emulator.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, Point(s.measurement, r))
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points to influxdb: %w", len(points), err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Point converts a reading to a point tagged with its identity.
func Point(measurement string, r emulator.Reading) *write.Point {
	return influxdb2.NewPoint(
		measurement,
		map[string]string{
			"sensor_id": r.SensorID,
			"category":  string(r.Category),
			"type":      string(r.Type),
			"unit":      r.Unit,
			"location":  string(r.Location),
		},
		map[string]interface{}{"value": r.Value},
		r.Timestamp,
	)
}
