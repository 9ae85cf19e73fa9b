// Package fanout publishes one FeatureRecord per processed event to every
// registered consumer channel, per two distinct delivery guarantees: the
// strategy evaluator and the DB writer must never miss a record (blocking,
// back-pressured publish), while the operator dashboard is best-effort and
// may be dropped to protect the hot loop's latency.
package fanout

import "featureengine/internal/types"

// Hub holds one Merger's outbound fan-out. A Merger owns exactly one Hub;
// consumers Subscribe before the Merger starts publishing.
type Hub struct {
	mustDeliver []chan types.FeatureRecord
	bestEffort  []chan types.FeatureRecord
}

// NewHub returns an empty fan-out hub.
func NewHub() *Hub {
	return &Hub{}
}

// SubscribeMustDeliver registers a bounded channel that Publish will block
// on rather than drop a record for — for the strategy evaluator and the DB
// writer.
func (h *Hub) SubscribeMustDeliver(bufferSize int) <-chan types.FeatureRecord {
	ch := make(chan types.FeatureRecord, bufferSize)
	h.mustDeliver = append(h.mustDeliver, ch)
	return ch
}

// SubscribeBestEffort registers a bounded channel that Publish will drop a
// record for rather than block on — for the operator dashboard.
func (h *Hub) SubscribeBestEffort(bufferSize int) <-chan types.FeatureRecord {
	ch := make(chan types.FeatureRecord, bufferSize)
	h.bestEffort = append(h.bestEffort, ch)
	return ch
}

// Publish hands rec to every subscriber. Must-deliver subscribers are sent
// to with a blocking send (the caller, i.e. the owning Merger, is
// deliberately back-pressured if one falls behind); best-effort subscribers
// use a non-blocking send and silently drop on a full buffer.
//
// ctxDone, if non-nil, lets a blocking must-deliver send abort on shutdown
// instead of wedging the Merger forever against a dead consumer.
func (h *Hub) Publish(rec types.FeatureRecord, ctxDone <-chan struct{}) {
	for _, ch := range h.mustDeliver {
		select {
		case ch <- rec:
		case <-ctxDone:
			return
		}
	}
	for _, ch := range h.bestEffort {
		select {
		case ch <- rec:
		default:
		}
	}
}
