// Package strategy is the minimal trading-strategy evaluator consumer. The
// spec treats the evaluator as an external, unspecified-behavior
// collaborator — this package only proves out the bounded-queue contract
// and owns its own bar-history manager for warm-up context; it never
// places an order.
package strategy

import (
	"context"
	"log"

	"featureengine/internal/barhistory"
	"featureengine/internal/types"
)

// Evaluator consumes a must-deliver FeatureRecord queue. Each Evaluator
// owns its own bar history (not shared with other consumers), per the Bar
// History Manager's one-instance-per-consumer design.
type Evaluator struct {
	tickHistory   *barhistory.Manager
	volumeHistory *barhistory.Manager
	dollarHistory *barhistory.Manager

	onRecord func(types.FeatureRecord)
}

// NewEvaluator builds an evaluator with its own bar-history retention.
// onRecord, if non-nil, is called synchronously for every record after
// history bookkeeping (a hook for a fully-specified strategy — this stub
// itself only logs the liquidation records it sees).
func NewEvaluator(historyCapacity int, onRecord func(types.FeatureRecord)) *Evaluator {
	return &Evaluator{
		tickHistory:   barhistory.NewManager(historyCapacity),
		volumeHistory: barhistory.NewManager(historyCapacity),
		dollarHistory: barhistory.NewManager(historyCapacity),
		onRecord:      onRecord,
	}
}

// Run drains in until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context, in <-chan types.FeatureRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			e.observe(rec)
		}
	}
}

func (e *Evaluator) observe(rec types.FeatureRecord) {
	e.retain(e.tickHistory, rec.TickBar)
	e.retain(e.volumeHistory, rec.VolumeBar)
	e.retain(e.dollarHistory, rec.DollarBar)

	if rec.EventType == types.EventLiquidation && rec.LiquidationDollar > 0 {
		log.Printf("strategy: %s liquidation %s %.2f @ %.2f", rec.Source, rec.LiquidationSide, rec.LiquidationQty, rec.LiquidationPrice)
	}

	if e.onRecord != nil {
		e.onRecord(rec)
	}
}

func (e *Evaluator) retain(history *barhistory.Manager, snap types.BarSnapshot) {
	if snap.LastBarID == "" {
		return
	}
	history.Add(barhistory.Entry{
		ID:        snap.LastBarID,
		Imbalance: snap.LastImbalance,
		Threshold: snap.LastThreshold,
	})
}
