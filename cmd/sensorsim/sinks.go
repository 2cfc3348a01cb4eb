package main

import (
	"context"
	"fmt"

	"github.com/synaptecltd/sensorsim/config"
	"github.com/synaptecltd/sensorsim/sink"
	"github.com/synaptecltd/sensorsim/sink/amqp"
	"github.com/synaptecltd/sensorsim/sink/influx"
	"github.com/synaptecltd/sensorsim/sink/objectstore"
	"github.com/synaptecltd/sensorsim/sink/postgres"
	"github.com/synaptecltd/sensorsim/sink/redis"
	"go.uber.org/zap"
)

// openSinks connects every configured sink. Already opened sinks are closed
// when a later one fails.
func openSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (sink.Multi, error) {
	var sinks sink.Multi
	for _, name := range cfg.Sinks {
		s, err := openSink(ctx, name, cfg, logger)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("opening %s sink: %w", name, err)
		}
		logger.Info("sink opened", zap.String("sink", name))
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func openSink(ctx context.Context, name string, cfg config.Config, logger *zap.Logger) (sink.Sink, error) {
	switch name {
	case config.SinkLog:
		return sink.NewLog(logger), nil
	case config.SinkInflux:
		return influx.New(ctx, cfg.Influx)
	case config.SinkPostgres:
		return postgres.New(ctx, cfg.Postgres)
	case config.SinkAMQP:
		return amqp.New(cfg.AMQP)
	case config.SinkRedis:
		return redis.New(ctx, cfg.Redis)
	case config.SinkObjectStore:
		return objectstore.New(ctx, cfg.ObjectStore)
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
