package metrics

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptecltd/sensorsim/anomaly"
)

func TestObserveTick(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveTick(6, 2*time.Millisecond, 1)
	c.ObserveTick(6, 3*time.Millisecond, 2)

	assert.Equal(t, 12.0, testutil.ToFloat64(c.readings))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tick))
}

func TestCollectorObservesInjector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	inj := anomaly.NewInjector(anomaly.WithObserver(c))
	r := rand.New(rand.NewPCG(42, 0))

	_, err := inj.ForceInject(r, "oven-1", "oven", anomaly.Spike, 1)
	require.NoError(t, err)
	_, err = inj.ForceInject(r, "fan-1", "fan_rpm", anomaly.Stall, 5)
	require.NoError(t, err)
	_, err = inj.ForceInject(r, "fan-1", "fan_rpm", anomaly.Overspeed, 5)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.injected.WithLabelValues("oven", anomaly.Spike)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.injected.WithLabelValues("fan", anomaly.Overspeed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ended.WithLabelValues("fan", anomaly.Stall)), "replaced")

	inj.UpdateSensor("oven-1")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ended.WithLabelValues("oven", anomaly.Spike)), "expired")

	inj.ClearAll()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ended.WithLabelValues("fan", anomaly.Overspeed)), "cleared")

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "sensorsim_anomalies_injected_total")
	assert.Contains(t, names, "sensorsim_anomalies_ended_total")
}

func TestNewRegistryAcceptsCollector(t *testing.T) {
	reg := NewRegistry()
	assert.NotPanics(t, func() { New(reg) })
	assert.Panics(t, func() { New(reg) }, "duplicate registration")
}
