// Package config loads the simulator's configuration from the environment,
// optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/anomaly"
	"github.com/synaptecltd/sensorsim/sensor"
	"github.com/synaptecltd/sensorsim/sink/amqp"
	"github.com/synaptecltd/sensorsim/sink/influx"
	"github.com/synaptecltd/sensorsim/sink/objectstore"
	"github.com/synaptecltd/sensorsim/sink/postgres"
	"github.com/synaptecltd/sensorsim/sink/redis"
)

// Prefix is stripped from environment variables before decoding. The rest of
// the name is lower-cased; a leading sink name selects that sink's section, so
// SENSORSIM_REDIS_TTL sets Redis.TTL.
const Prefix = "SENSORSIM_"

// Unprefixed variables also accepted.
var aliases = map[string]string{
	"CATALOG_PATH": "catalog_path",
	"LOG_LEVEL":    "log_level",
	"LOG_FORMAT":   "log_format",
}

// Sink names.
const (
	SinkLog         = "log"
	SinkInflux      = "influx"
	SinkPostgres    = "postgres"
	SinkAMQP        = "amqp"
	SinkRedis       = "redis"
	SinkObjectStore = "objectstore"
)

var sections = map[string]bool{
	SinkInflux: true, SinkPostgres: true, SinkAMQP: true, SinkRedis: true, SinkObjectStore: true,
}

type Config struct {
	Sensors     int     `mapstructure:"sensors"`
	Seed        uint64  `mapstructure:"seed"` // 0 seeds from the wall clock
	Parallelism int     `mapstructure:"parallelism"`
	Location    string  `mapstructure:"location"` // empty draws one per unit
	AnomalyRate float64 `mapstructure:"anomaly_rate"`
	Anomalies   bool    `mapstructure:"anomalies"` // enable random injection at start
	CatalogPath string  `mapstructure:"catalog_path"`

	Mode       string        `mapstructure:"mode"`
	Interval   time.Duration `mapstructure:"interval"`
	Start      time.Time     `mapstructure:"start"`
	End        time.Time     `mapstructure:"end"`
	Iterations int           `mapstructure:"iterations"`
	Duration   time.Duration `mapstructure:"duration"`
	BatchSize  int           `mapstructure:"batch_size"`
	Demo       bool          `mapstructure:"demo"`

	ControlAddr string   `mapstructure:"control_addr"` // empty disables the control server
	CORSOrigins []string `mapstructure:"cors_origins"`
	LogLevel    string   `mapstructure:"log_level"`
	LogFormat   string   `mapstructure:"log_format"` // json or console

	Sinks       []string           `mapstructure:"sinks"`
	Influx      influx.Config      `mapstructure:"influx"`
	Postgres    postgres.Config    `mapstructure:"postgres"`
	AMQP        amqp.Config        `mapstructure:"amqp"`
	Redis       redis.Config       `mapstructure:"redis"`
	ObjectStore objectstore.Config `mapstructure:"objectstore"`
}

// Default returns the configuration used for unset variables.
func Default() Config {
	return Config{
		Sensors:     10,
		Parallelism: 1,
		AnomalyRate: anomaly.DefaultRate,
		Mode:        emulator.Continuous,
		Interval:    5 * time.Second,
		BatchSize:   emulator.DefaultBatchSize,
		ControlAddr: ":8080",
		LogLevel:    "info",
		LogFormat:   "json",
		Sinks:       []string{SinkLog},
		Influx:      influx.Config{Measurement: influx.DefaultMeasurement, Timeout: 5 * time.Second},
		Postgres:    postgres.Config{BatchSize: postgres.DefaultBatchSize},
		AMQP:        amqp.Config{Exchange: amqp.DefaultExchange},
		Redis:       redis.Config{KeyPrefix: redis.DefaultKeyPrefix, TTL: redis.DefaultTTL},
		ObjectStore: objectstore.Config{Prefix: objectstore.DefaultPrefix},
	}
}

// Load reads the given .env files, or ./.env when none are given, then the
// process environment, which takes precedence. A missing ./.env is ignored.
func Load(files ...string) (Config, error) {
	vars := map[string]string{}

	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		dotenv, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("reading env files: %w", err)
		}
		for k, v := range dotenv {
			vars[k] = v
		}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return FromMap(vars)
}

// FromMap decodes configuration from environment style variables over the
// defaults.
func FromMap(vars map[string]string) (Config, error) {
	raw := map[string]interface{}{}
	for k, v := range vars {
		key, ok := aliases[k]
		if !ok {
			if !strings.HasPrefix(k, Prefix) {
				continue
			}
			key = strings.ToLower(strings.TrimPrefix(k, Prefix))
		}
		setKey(raw, key, v)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decoding %s variables: %w", Prefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setKey places key under its sink section when it starts with a sink name.
func setKey(raw map[string]interface{}, key, value string) {
	if section, rest, ok := strings.Cut(key, "_"); ok && sections[section] {
		sub, _ := raw[section].(map[string]interface{})
		if sub == nil {
			sub = map[string]interface{}{}
			raw[section] = sub
		}
		sub[rest] = value
		return
	}
	raw[key] = value
}

// Validate checks values the decoder cannot.
func (c Config) Validate() error {
	if c.Sensors <= 0 {
		return errors.New("sensors must be greater than 0")
	}
	if c.AnomalyRate < 0 || c.AnomalyRate > 1 {
		return fmt.Errorf("anomaly rate %v outside [0, 1]", c.AnomalyRate)
	}
	if c.Location != "" {
		if _, err := sensor.ParseLocation(c.Location); err != nil {
			return err
		}
	}
	for _, s := range c.Sinks {
		if s != SinkLog && !sections[s] {
			return fmt.Errorf("unknown sink %q", s)
		}
	}
	return nil
}

// RunnerParams returns the driver loop settings.
func (c Config) RunnerParams() emulator.RunnerParams {
	return emulator.RunnerParams{
		Mode:       c.Mode,
		Interval:   c.Interval,
		Start:      c.Start,
		End:        c.End,
		Iterations: c.Iterations,
		Duration:   c.Duration,
		BatchSize:  c.BatchSize,
		Demo:       c.Demo,
	}
}
