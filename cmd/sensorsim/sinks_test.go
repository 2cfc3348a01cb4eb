package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptecltd/sensorsim/config"
	"github.com/synaptecltd/sensorsim/sink"
	"go.uber.org/zap"
)

func TestOpenSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = []string{config.SinkLog, config.SinkLog}

	sinks, err := openSinks(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.IsType(t, &sink.Log{}, sinks[0])
	assert.NoError(t, sinks.Close())
}

func TestOpenSinksReportsFailures(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = []string{config.SinkLog, config.SinkRedis} // no redis address configured

	_, err := openSinks(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "opening redis sink")

	cfg.Sinks = []string{"kafka"}
	_, err = openSinks(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, `unknown sink "kafka"`)
}
