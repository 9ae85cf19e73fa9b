package types

import (
	"math"

	"github.com/shopspring/decimal"
)

// EventType tags which venue event produced a FeatureRecord.
type EventType string

const (
	EventTrade       EventType = "trade"
	EventDepth       EventType = "depth"
	EventMarkPrice   EventType = "mark_price"
	EventLiquidation EventType = "liquidation"
)

// BarSnapshot is the portion of FeatureRecord contributed by one
// information-bar kind: the most recently completed bar's id/imb/threshold
// plus the live in-progress bar's imb/threshold/vwap/cvd.
type BarSnapshot struct {
	LastBarID        string
	LastImbalance    float64
	LastThreshold    float64
	LiveImbalance    float64
	LiveThreshold    float64
	LiveVWAP         float64
	LiveCVD          float64
	LiveAggressive   float64
	LiveAggressiveVol float64
}

// FeatureRecord is a timestamped snapshot published once per processed event.
// It is always transferred by value: the Merger deep-copies its scratch
// buffer before handing it to a downstream channel, so no two tasks ever
// share the backing memory of a record.
type FeatureRecord struct {
	Source    Source
	EventType EventType
	Price     decimal.Decimal

	// Per-publish accumulators; zeroed by the Merger immediately after
	// publishing a Trade record.
	MakerQuantity decimal.Decimal
	TakerQuantity decimal.Decimal

	// Order-book scalars, recomputed on each applied Depth event. They are
	// not cleared afterward: later records carry the last computed values
	// (zero until the first applied depth event).
	OBI          float64
	OBIRange     []float64 // parallel to the merger's obiMargins
	Spread       float64
	BestBid      float64
	BestAsk      float64
	FlowImbalance float64

	TickBar   BarSnapshot
	VolumeBar BarSnapshot
	DollarBar BarSnapshot

	// Mark-price / funding fields, populated on MarkPrice events and cleared
	// immediately afterward.
	MarkPrice       float64
	IndexPrice      float64
	FundingRate     float64
	NextFundingTime int64

	// Liquidation fields, populated on Liquidation events and cleared
	// immediately afterward.
	LiquidationSide   Side
	LiquidationPrice  float64
	LiquidationQty    float64
	LiquidationDollar float64

	TradeTime     int64
	EventTime     int64
	ProcessedTime int64
}

// Clone returns a deep, independent copy safe to hand to another goroutine.
func (r *FeatureRecord) Clone() FeatureRecord {
	out := *r
	if len(r.OBIRange) > 0 {
		out.OBIRange = append([]float64(nil), r.OBIRange...)
	}
	return out
}

// AppendMsgPack appends a zero-allocation MsgPack encoding of the record to
// b, for the operator dashboard broadcaster. The wire shape is a FixArray
// matching the field order below; it is a format convenience for a
// best-effort consumer, not a persistence format (see internal/dbwriter for
// that).
func (r *FeatureRecord) AppendMsgPack(b []byte) []byte {
	b = append(b, 0xdc, 0x00, 0x10) // array16, count 16
	b = appendStr(b, string(r.Source))
	b = appendStr(b, string(r.EventType))
	b = appendFloat64(b, toFloat(r.Price))
	b = appendFloat64(b, toFloat(r.MakerQuantity))
	b = appendFloat64(b, toFloat(r.TakerQuantity))
	b = appendFloat64(b, r.OBI)
	b = appendFloat64(b, r.FlowImbalance)
	b = appendFloat64(b, r.Spread)
	b = appendBarSnapshot(b, &r.TickBar)
	b = appendBarSnapshot(b, &r.VolumeBar)
	b = appendBarSnapshot(b, &r.DollarBar)
	b = appendFloat64(b, r.MarkPrice)
	b = appendFloat64(b, r.FundingRate)
	b = appendFloat64(b, r.LiquidationDollar)
	b = appendInt64(b, r.TradeTime)
	b = appendInt64(b, r.ProcessedTime)
	return b
}

func appendBarSnapshot(b []byte, bar *BarSnapshot) []byte {
	b = append(b, 0x94) // FixArray(4)
	b = appendFloat64(b, bar.LiveImbalance)
	b = appendFloat64(b, bar.LiveThreshold)
	b = appendFloat64(b, bar.LiveVWAP)
	b = appendFloat64(b, bar.LiveCVD)
	return b
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func appendFloat64(b []byte, v float64) []byte {
	b = append(b, 0xcb)
	bits := math.Float64bits(v)
	return append(b, byte(bits>>56), byte(bits>>48), byte(bits>>40), byte(bits>>32),
		byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
}

func appendInt64(b []byte, v int64) []byte {
	if v >= 0 && v <= 127 {
		return append(b, byte(v))
	}
	if v < 0 && v >= -32 {
		return append(b, byte(v))
	}
	b = append(b, 0xd3)
	return append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendStr(b []byte, s string) []byte {
	n := len(s)
	switch {
	case n < 32:
		b = append(b, 0xa0|byte(n))
	case n < 256:
		b = append(b, 0xd9, byte(n))
	default:
		b = append(b, 0xda, byte(n>>8), byte(n))
	}
	return append(b, s...)
}
