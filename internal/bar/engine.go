package bar

import "math"

// Config parameterizes one Engine instance. Defaults per the adaptive
// threshold model: Lambda 0.9, K1 1e-4, K2 1e-2, ClampWindow 50,
// GenesisCollectPeriod 5s (5000ms).
type Config struct {
	Lambda               float64
	K1, K2               float64
	ClampWindow          int
	GenesisCollectPeriod int64 // ms
}

// DefaultConfig returns the spec-recommended parameters.
func DefaultConfig() Config {
	return Config{
		Lambda:               0.9,
		K1:                   1e-4,
		K2:                   1e-2,
		ClampWindow:          50,
		GenesisCollectPeriod: 5000,
	}
}

// Engine drives one bar kind's state machine. It is owned exclusively by
// the Merger task that feeds it ticks; it holds no synchronization of its
// own.
type Engine struct {
	kind Kind
	cfg  Config

	state State
	live  BarLive
	thr   BarThresholdState

	hasPrevClose bool
	cvd          float64
}

// NewEngine starts a fresh engine in GENESIS with a newly minted bar id.
func NewEngine(kind Kind, cfg Config) *Engine {
	e := &Engine{kind: kind, cfg: cfg, state: StateGenesis}
	e.live.ID = newBarID()
	return e
}

// OnTick feeds one trade tick (price, quantity, and the trade's timestamp in
// ms) into the engine. When the tick closes the live bar — by genesis
// condition or threshold crossing — it returns the completed snapshot and
// true; otherwise (nil, false).
func (e *Engine) OnTick(tradeTime int64, price, qty float64) (*Completed, bool) {
	if !e.live.Open {
		e.live.TS = tradeTime
		e.live.Open_ = price
		e.live.High = price
		e.live.Low = price
		e.live.Open = true
	}

	prevClose := price
	if e.hasPrevClose {
		prevClose = e.thr.PrevClose
	}
	delta := price - prevClose
	incr := e.increment(sign(delta), qty, price)

	e.live.Imbalance += incr
	e.live.TickCount++
	e.live.TE = tradeTime
	if price > e.live.High {
		e.live.High = price
	}
	if price < e.live.Low {
		e.live.Low = price
	}
	e.live.CumPriceVolume += price * qty
	e.live.CumVolume += qty

	if e.kind != KindTick {
		e.cvd += incr
	}

	e.thr.PrevClose = price
	e.hasPrevClose = true

	if e.state == StateGenesis {
		return e.checkGenesis(price)
	}
	return e.checkActive(price)
}

// increment is the per-kind imbalance contribution from the table in 4.C.
func (e *Engine) increment(s, qty, price float64) float64 {
	switch e.kind {
	case KindTick:
		return s
	case KindVolume:
		return s * qty
	case KindDollar:
		return s * qty * price
	default:
		return 0
	}
}

func (e *Engine) checkGenesis(closePrice float64) (*Completed, bool) {
	elapsed := e.live.TE - e.live.TS
	if elapsed < e.cfg.GenesisCollectPeriod || e.live.Imbalance == 0 {
		return nil, false
	}

	avgImb := e.live.Imbalance / float64(e.live.TickCount)
	updateEWMA(&e.thr, e.cfg.Lambda, avgImb, float64(e.live.TickCount))
	nominal := nominalThreshold(&e.thr)

	e.thr.BaseThreshold = nominal
	e.thr.ClampHistory = pushHistory(e.thr.ClampHistory, nominal, e.cfg.ClampWindow)
	e.thr.Threshold = nominal

	completed := e.snapshot(closePrice, e.thr.Threshold)

	e.reset()
	e.state = StateActive
	return &completed, true
}

func (e *Engine) checkActive(closePrice float64) (*Completed, bool) {
	elapsed := e.live.TE - e.live.TS
	e.thr.Threshold = decay(e.thr.BaseThreshold, elapsed, e.cfg.K1, e.cfg.K2)

	if math.Abs(e.live.Imbalance) < e.thr.Threshold {
		return nil, false
	}

	completed := e.snapshot(closePrice, e.thr.Threshold)

	avgImb := e.live.Imbalance / float64(e.live.TickCount)
	updateEWMA(&e.thr, e.cfg.Lambda, avgImb, float64(e.live.TickCount))
	nominal := nominalThreshold(&e.thr)
	clamped := clampToHistory(e.thr.ClampHistory, nominal)

	e.thr.BaseThreshold = clamped
	e.thr.ClampHistory = pushHistory(e.thr.ClampHistory, clamped, e.cfg.ClampWindow)
	e.thr.Threshold = clamped

	e.reset()
	return &completed, true
}

func (e *Engine) snapshot(closePrice, effectiveThreshold float64) Completed {
	v, _ := vwap(e.live.CumPriceVolume, e.live.CumVolume)
	return Completed{
		ID:             e.live.ID,
		Kind:           e.kind,
		TS:             e.live.TS,
		TE:             e.live.TE,
		Open:           e.live.Open_,
		High:           e.live.High,
		Low:            e.live.Low,
		Close:          closePrice,
		Imbalance:      e.live.Imbalance,
		TickCount:      e.live.TickCount,
		CumPriceVolume: e.live.CumPriceVolume,
		VWAP:           v,
		Threshold:      effectiveThreshold,
		CVD:            e.cvd,
	}
}

// reset clears the live bar's extent and accumulators and mints a fresh id,
// retaining the threshold state (and implicitly PrevClose) untouched.
func (e *Engine) reset() {
	e.live = BarLive{ID: newBarID()}
}

// LiveImbalance, LiveThreshold, LiveVWAP and LiveCVD report the in-progress
// bar's current values, for the FeatureRecord's live fields.
func (e *Engine) LiveImbalance() float64 { return e.live.Imbalance }
func (e *Engine) LiveThreshold() float64 { return e.thr.Threshold }
func (e *Engine) LiveCVD() float64       { return e.cvd }

func (e *Engine) LiveVWAP() float64 {
	v, _ := vwap(e.live.CumPriceVolume, e.live.CumVolume)
	return v
}
