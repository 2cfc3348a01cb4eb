// Package anomaly injects time-bounded corruptions into clean sensor values and
// tracks the lifecycle of every active corruption.
package anomaly

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/synaptecltd/sensorsim/mathfuncs"
)

var (
	ErrUnknownCategory = errors.New("unknown anomaly category")
	ErrUnknownType     = errors.New("unknown anomaly type")
)

// Anomaly types known to the transform table.
const (
	Spike            = "spike"
	PollutionSpike   = "pollution_spike"
	DustStorm        = "dust_storm"
	Overspeed        = "overspeed"
	Drop             = "drop"
	Drift            = "drift"
	SensorDrift      = "sensor_drift"
	Oscillation      = "oscillation"
	Vibration        = "vibration"
	Flicker          = "flicker"
	Stuck            = "stuck"
	StuckOn          = "stuck_on"
	Stall            = "stall"
	CalibrationError = "calibration_error"
)

// Anomaly is one active corruption of a single sensor's value stream.
type Anomaly struct {
	ID        uuid.UUID
	SensorID  string
	Category  string // catalog key, e.g. "fan" for both fan sensors
	Type      string
	StartedAt time.Time

	TotalDuration     int     // ticks
	RemainingDuration int     // ticks, strictly decreasing
	Phase             float64 // advances by one per application for oscillatory types

	// Payload, populated according to the keys of the pattern it was drawn from.
	Magnitude  *float64
	FixedValue *float64
	Rate       *float64
	Offset     *float64
	Amplitude  *float64
	Frequency  *float64

	shape mathfuncs.MathsFunction
}

// Progress returns the elapsed fraction of the anomaly's life: 0 at injection,
// approaching 1 as it expires.
func (a *Anomaly) Progress() float64 {
	return mathfuncs.Progress(a.RemainingDuration, a.TotalDuration)
}

// HistoryEntry records an injection. Entries are never modified.
type HistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	SensorID  string    `json:"sensor_id"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	StartedAt time.Time `json:"started_at"`
	Duration  int       `json:"duration"`
	Magnitude *float64  `json:"magnitude,omitempty"`
}

// ActiveSummary describes an active anomaly in status reports.
type ActiveSummary struct {
	ID                uuid.UUID `json:"id"`
	Category          string    `json:"category"`
	Type              string    `json:"type"`
	StartedAt         time.Time `json:"started_at"`
	TotalDuration     int       `json:"total_duration"`
	RemainingDuration int       `json:"remaining_duration"`
}

// Status is a point-in-time view of the injector.
type Status struct {
	Enabled        bool                     `json:"enabled"`
	Rate           float64                  `json:"rate"`
	ActiveCount    int                      `json:"active_count"`
	ActiveBySensor map[string]ActiveSummary `json:"active_by_sensor"`
	RecentHistory  []HistoryEntry           `json:"recent_history"`
}

func (a *Anomaly) summary() ActiveSummary {
	return ActiveSummary{
		ID:                a.ID,
		Category:          a.Category,
		Type:              a.Type,
		StartedAt:         a.StartedAt,
		TotalDuration:     a.TotalDuration,
		RemainingDuration: a.RemainingDuration,
	}
}

func (a *Anomaly) historyEntry() HistoryEntry {
	return HistoryEntry{
		ID:        a.ID,
		SensorID:  a.SensorID,
		Category:  a.Category,
		Type:      a.Type,
		StartedAt: a.StartedAt,
		Duration:  a.TotalDuration,
		Magnitude: a.Magnitude,
	}
}
