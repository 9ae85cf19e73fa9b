// Package bar implements the information-driven bar engine: tick-, volume-,
// and dollar-imbalance bars sharing one state machine and an adaptive
// threshold model, per the bar kinds' differing per-tick imbalance
// contribution.
//
// A Bar's fields split across two lifetimes. BarLive holds everything a
// reset clears (id, extent, OHLC, imbalance accumulator, VWAP
// accumulators); BarThresholdState holds everything a reset keeps (EWMA
// estimators, clamp history, the current threshold, and the previous close
// price). Encoding that split as two structs, rather than one struct with a
// handful of fields nulled out on reset, keeps Engine.reset's job
// impossible to get wrong by omission.
package bar

import (
	"math"

	"github.com/google/uuid"
)

// Kind selects the per-tick imbalance contribution.
type Kind int

const (
	KindTick Kind = iota
	KindVolume
	KindDollar
)

// State is the bar engine's lifecycle position.
type State int

const (
	StateGenesis State = iota
	StateActive
)

// BarLive is the in-progress bar's mutable extent and accumulators. Cleared
// by Engine.reset.
type BarLive struct {
	ID         string
	Open       bool
	TS, TE     int64 // first/last tick time, ms
	Open_      float64
	High       float64
	Low        float64
	Imbalance  float64
	TickCount  int64

	CumPriceVolume float64
	CumVolume      float64
}

// BarThresholdState carries over every reset: the EWMA estimators, the
// clamp history, the live threshold, and the previous bar's close price
// (needed to compute the next bar's first Δprice).
type BarThresholdState struct {
	PrevClose float64

	EWMAImb       float64
	EWMATickCount float64

	ClampHistory []float64 // bounded FIFO, most recent last
	ClampWindow  int

	// BaseThreshold is the clamped nominal threshold as of the last bar
	// closure, before in-bar decay. Threshold is BaseThreshold after
	// decay has been applied for the live bar's current elapsed time.
	BaseThreshold float64
	Threshold     float64
}

// Completed is an immutable snapshot of a bar at the moment it closed,
// handed to the Merger for publication and bar-history retention.
type Completed struct {
	ID             string
	Kind           Kind
	TS, TE         int64
	Open           float64
	High           float64
	Low            float64
	Close          float64
	Imbalance      float64
	TickCount      int64
	CumPriceVolume float64
	VWAP           float64
	Threshold      float64
	CVD            float64
}

// Aggressive implements aggressive() = tick_count / (te - ts); ok is false
// when the bar's duration is zero (undefined per spec).
func (c Completed) Aggressive() (float64, bool) {
	dur := c.TE - c.TS
	if dur <= 0 {
		return 0, false
	}
	return float64(c.TickCount) / float64(dur), true
}

// AggressiveVol implements aggressive_vol() = tick_count * cum_price_volume
// / (te - ts).
func (c Completed) AggressiveVol() (float64, bool) {
	dur := c.TE - c.TS
	if dur <= 0 {
		return 0, false
	}
	return float64(c.TickCount) * c.CumPriceVolume / float64(dur), true
}

func newBarID() string {
	return uuid.NewString()
}

// vwap computes cum_price_volume / cum_volume, undefined (0, false) when
// cum_volume is zero.
func vwap(cumPriceVolume, cumVolume float64) (float64, bool) {
	if cumVolume == 0 {
		return 0, false
	}
	return cumPriceVolume / cumVolume, true
}

// sign returns -1, 0, or +1, with sign(NaN) treated as 0 (ordering
// comparisons against NaN must never register as a threshold crossing).
func sign(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
