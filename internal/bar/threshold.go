package bar

import "math"

// updateEWMA folds one closed bar's (imb/tick_count, tick_count) pair into
// the running EWMA estimators with weight lambda.
func updateEWMA(t *BarThresholdState, lambda, avgImb, tickCount float64) {
	t.EWMAImb = lambda*avgImb + (1-lambda)*t.EWMAImb
	t.EWMATickCount = lambda*tickCount + (1-lambda)*t.EWMATickCount
}

// nominalThreshold is |ewma_imb| * ewma_tick_count.
func nominalThreshold(t *BarThresholdState) float64 {
	return math.Abs(t.EWMAImb) * t.EWMATickCount
}

// clampToHistory bounds nominal to [0.5*min, 1.5*max] of the clamp FIFO.
// An empty history (genesis) leaves nominal untouched.
func clampToHistory(history []float64, nominal float64) float64 {
	if len(history) == 0 {
		return nominal
	}
	lo, hi := history[0], history[0]
	for _, v := range history[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	lo *= 0.5
	hi *= 1.5
	switch {
	case nominal < lo:
		return lo
	case nominal > hi:
		return hi
	default:
		return nominal
	}
}

// pushHistory appends v and trims the FIFO to window from the front.
func pushHistory(history []float64, v float64, window int) []float64 {
	history = append(history, v)
	if len(history) > window {
		history = history[len(history)-window:]
	}
	return history
}

// decay applies the two-phase in-bar threshold decay: exp(-k1*sqrt(t)) up to
// t=5000ms, exp(-k2*sqrt(t-5000)) beyond it. t is the bar's elapsed time in
// milliseconds since its first tick.
func decay(base float64, elapsedMS int64, k1, k2 float64) float64 {
	t := float64(elapsedMS)
	var factor float64
	if t <= 5000 {
		factor = math.Exp(-k1 * math.Sqrt(t))
	} else {
		factor = math.Exp(-k2 * math.Sqrt(t-5000))
	}
	return base * factor
}
