package emulator

import (
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptecltd/sensorsim/anomaly"
	"github.com/synaptecltd/sensorsim/sensor"
)

var noon = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// constSim is an oven whose clean value never changes.
type constSim struct {
	value float64
}

func (c *constSim) Category() sensor.Category              { return sensor.Oven }
func (c *constSim) Unit() string                           { return "C" }
func (c *constSim) Bounds() (float64, float64)             { return 15, 350 }
func (c *constSim) Mode() string                           { return "fixed" }
func (c *constSim) Step(_ *rand.Rand, _ time.Time) float64 { return c.value }

func newController() *anomaly.Controller {
	return anomaly.NewController(anomaly.NewInjector(), rand.New(rand.NewPCG(42, 1)), nil)
}

// benchmark fleet tick performance
func BenchmarkFleetTick(b *testing.B) {
	fleet, err := NewFleet(100, WithSeed(42))
	require.NoError(b, err)
	fleet.Controller().Enable(0.05)

	now := noon
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fleet.Tick(now)
		now = now.Add(time.Minute)
	}
}

func BenchmarkFleetTickParallel(b *testing.B) {
	fleet, err := NewFleet(100, WithSeed(42), WithParallelism(4))
	require.NoError(b, err)
	fleet.Controller().Enable(0.05)

	now := noon
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fleet.Tick(now)
		now = now.Add(time.Minute)
	}
}

func TestNewFleetComposition(t *testing.T) {
	fleet, err := NewFleet(5, WithSeed(42))
	require.NoError(t, err)

	units := fleet.Units()
	require.Len(t, units, 6)

	expected := []sensor.Category{sensor.Oven, sensor.Heater, sensor.Lamp, sensor.FanRPM, sensor.FanDigital, sensor.PM}
	for i, u := range units {
		assert.Equal(t, expected[i], u.Category)
		assert.Nil(t, u.LastValue)
		assert.Equal(t, uint64(0), u.ReadingCount)
	}

	digital, ok := units[4].Simulator().(sensor.Derived)
	require.True(t, ok)
	assert.Equal(t, 3, digital.Pair())
	assert.Equal(t, units[3].Location, units[4].Location)

	idPattern := regexp.MustCompile(`^fan_rpm-(restaurant|supermarket|factory)-[0-9a-f]{8}$`)
	assert.Regexp(t, idPattern, units[3].ID)
}

func TestNewFleetErrors(t *testing.T) {
	_, err := NewFleet(0)
	assert.Error(t, err)

	_, err = NewFleet(3, WithCategories())
	assert.Error(t, err)

	_, err = NewFleet(3, WithCategories(sensor.Category("fridge")))
	assert.ErrorContains(t, err, "fridge")
}

func TestFleetLocationPinned(t *testing.T) {
	fleet, err := NewFleet(10, WithSeed(1), WithLocation(sensor.Factory))
	require.NoError(t, err)
	for _, u := range fleet.Units() {
		assert.Equal(t, sensor.Factory, u.Location)
	}
}

// Every reading stays within its unit's bounds, anomalies included.
func TestFleetReadingsWithinBounds(t *testing.T) {
	fleet, err := NewFleet(20, WithSeed(42), WithParallelism(4))
	require.NoError(t, err)
	fleet.Controller().Enable(0.3)

	units := fleet.Units()
	now := noon
	for tick := 0; tick < 500; tick++ {
		readings := fleet.Tick(now)
		require.Len(t, readings, len(units))
		for i, r := range readings {
			assert.Equal(t, units[i].ID, r.SensorID)
			assert.Equal(t, now, r.Timestamp)
			assert.GreaterOrEqual(t, r.Value, units[i].Min, "%s below bounds", r.SensorID)
			assert.LessOrEqual(t, r.Value, units[i].Max, "%s above bounds", r.SensorID)
		}
		now = now.Add(time.Minute)
	}

	for _, u := range units {
		assert.Equal(t, uint64(500), u.ReadingCount)
		require.NotNil(t, u.LastValue)
	}
	assert.Greater(t, fleet.Controller().Injector().Injected(), uint64(0))
}

func TestFleetReproducibleAcrossParallelism(t *testing.T) {
	run := func(parallelism int) [][]float64 {
		fleet, err := NewFleet(15, WithSeed(7), WithParallelism(parallelism))
		require.NoError(t, err)
		fleet.Controller().Enable(0.1)

		var out [][]float64
		now := noon
		for tick := 0; tick < 200; tick++ {
			var values []float64
			for _, r := range fleet.Tick(now) {
				values = append(values, r.Value)
			}
			out = append(out, values)
			now = now.Add(30 * time.Second)
		}
		return out
	}

	assert.Equal(t, run(1), run(4))
}

func TestReadingKinds(t *testing.T) {
	fleet, err := NewFleet(5, WithSeed(3))
	require.NoError(t, err)

	for _, r := range fleet.Tick(noon) {
		switch r.Category {
		case sensor.Lamp, sensor.FanDigital:
			assert.Equal(t, sensor.Digital, r.Type)
			assert.Equal(t, "io", r.Unit)
		default:
			assert.Equal(t, sensor.Analog, r.Type)
		}
	}
}

// The digital fan follows the rpm its pair reported in the same tick,
// anomalies included.
func TestDigitalFanFollowsReportedRPM(t *testing.T) {
	fleet, err := NewFleet(1, WithSeed(42), WithCategories(sensor.FanRPM))
	require.NoError(t, err)
	units := fleet.Units()
	require.Len(t, units, 2)
	rpm, digital := units[0], units[1]

	require.True(t, fleet.Controller().ForceInject(rpm.ID, string(rpm.Category), anomaly.Overspeed, 50))

	readings := fleet.Tick(noon)
	assert.GreaterOrEqual(t, readings[0].Value, 300.0)
	assert.Equal(t, 0.0, readings[1].Value, "digital fan starts off")

	on := -1
	for tick := 1; tick <= 6; tick++ {
		readings = fleet.Tick(noon.Add(time.Duration(tick) * time.Minute))
		if readings[1].Value == 1 {
			on = tick
			break
		}
	}
	assert.GreaterOrEqual(t, on, 2, "startup delay of at least one tick")
	assert.LessOrEqual(t, on, 4, "startup delay of at most three ticks")
	assert.Equal(t, sensor.FanOn, digital.Mode())
}

func TestUnpairedDigitalFanTreatsRPMAsZero(t *testing.T) {
	fleet, err := NewFleet(1, WithSeed(42), WithCategories(sensor.FanDigital))
	require.NoError(t, err)
	require.Equal(t, 1, fleet.Len())

	now := noon
	for tick := 0; tick < 200; tick++ {
		r := fleet.Tick(now)[0]
		assert.Contains(t, []float64{0, 1}, r.Value)
		now = now.Add(time.Minute)
	}
}

func TestUnitSpikeScenario(t *testing.T) {
	ctrl := newController()
	unit := NewUnit("oven-1", &constSim{value: 200}, sensor.Restaurant, rand.New(rand.NewPCG(42, 0)))

	a, err := ctrl.Injector().ForceInject(rand.New(rand.NewPCG(1, 1)), unit.ID, "oven", anomaly.Spike, 50)
	require.NoError(t, err)

	for tick := 0; tick < 50; tick++ {
		r := unit.Tick(noon, ctrl)
		assert.InDelta(t, 200+*a.Magnitude, r.Value, 1e-9)
		assert.GreaterOrEqual(t, r.Value, 250.0)
	}

	_, active := ctrl.Injector().Active(unit.ID)
	assert.False(t, active)
	assert.Equal(t, 200.0, unit.Tick(noon, ctrl).Value, "reverts to the clean value")
}

func TestUnitClampsAnomalousValues(t *testing.T) {
	ctrl := newController()
	unit := NewUnit("", &constSim{value: 340}, sensor.Factory, rand.New(rand.NewPCG(42, 0)))
	assert.Regexp(t, `^oven-factory-[0-9a-f]{8}$`, unit.ID)

	require.True(t, ctrl.ForceInject(unit.ID, "oven", anomaly.Spike, 5))
	assert.Equal(t, 350.0, unit.Tick(noon, ctrl).Value)

	ctrl.ClearAll()
	unit.sim = &constSim{value: 20}
	require.True(t, ctrl.ForceInject(unit.ID, "oven", anomaly.Drop, 5))
	assert.Equal(t, 15.0, unit.Tick(noon, ctrl).Value, "drop is clamped to the oven minimum")
}

func TestUnitWithoutControllerIsClean(t *testing.T) {
	unit := NewUnit("oven-x", &constSim{value: 123}, sensor.Supermarket, rand.New(rand.NewPCG(42, 0)))
	assert.Nil(t, unit.LastValue)

	r := unit.Tick(noon, nil)
	assert.Equal(t, 123.0, r.Value)
	require.NotNil(t, unit.LastValue)
	assert.Equal(t, 123.0, *unit.LastValue)
	assert.Equal(t, uint64(1), unit.ReadingCount)
	assert.Equal(t, sensor.Supermarket, r.Location)
	assert.Equal(t, "C", r.Unit)
}

func TestFlickerOnPairedDigitalFan(t *testing.T) {
	fleet, err := NewFleet(1, WithSeed(42), WithCategories(sensor.FanRPM))
	require.NoError(t, err)
	digital := fleet.Units()[1]
	ctrl := fleet.Controller()

	require.True(t, ctrl.ForceInject(digital.ID, "fan", anomaly.Flicker, 5))

	now := noon
	for tick := 0; tick < 5; tick++ {
		v := fleet.Tick(now)[1].Value
		assert.Contains(t, []float64{0, 1}, v)
		now = now.Add(time.Minute)
	}

	_, active := ctrl.Injector().Active(digital.ID)
	assert.False(t, active, "flicker expires after five ticks")
}

func TestDisabledInjectionStillAppliesForcedAnomalies(t *testing.T) {
	fleet, err := NewFleet(1, WithSeed(42), WithCategories(sensor.Lamp))
	require.NoError(t, err)
	lamp := fleet.Units()[0]
	ctrl := fleet.Controller()

	enabled, _ := ctrl.Enabled()
	require.False(t, enabled)
	require.True(t, ctrl.ForceInject(lamp.ID, "lamp", anomaly.StuckOn, 20))

	now := noon.Add(-10 * time.Hour) // 2am, lamp mostly off
	for tick := 0; tick < 20; tick++ {
		assert.Equal(t, 1.0, fleet.Tick(now)[0].Value)
		now = now.Add(time.Minute)
	}
	assert.Equal(t, 0, ctrl.Injector().ActiveCount())
}

func TestStartDemoEvent(t *testing.T) {
	fleet, err := NewFleet(5, WithSeed(11))
	require.NoError(t, err)

	id, typ, ok := fleet.StartDemoEvent()
	require.True(t, ok)

	a, active := fleet.Controller().Injector().Active(id)
	require.True(t, active)
	assert.Equal(t, typ, a.Type)
	assert.Equal(t, DemoEventDuration, a.TotalDuration)
	assert.Equal(t, DemoEvents[a.Category], typ)
}

func TestSnapshot(t *testing.T) {
	fleet, err := NewFleet(5, WithSeed(42))
	require.NoError(t, err)

	before := fleet.Snapshot()
	require.Len(t, before, 6)
	assert.Nil(t, before[0].LastValue)

	fleet.Tick(noon)
	after := fleet.Snapshot()
	for i, s := range after {
		require.NotNil(t, s.LastValue)
		assert.Equal(t, uint64(1), s.ReadingCount)
		assert.Equal(t, before[i].ID, s.ID)
		assert.NotEmpty(t, s.Mode)
	}
}
