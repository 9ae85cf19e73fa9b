// Package types holds the wire-adjacent data model shared by every component
// of the feature engine: raw venue events, order-book price levels, and the
// per-event FeatureRecord published downstream.
//
// Prices and sizes are parsed once at ingress into decimal.Decimal and carried
// as that type everywhere ordering or equality matters (order-book ladders,
// feature-record echoes of the trade price). Conversion to float64 happens
// only at the feature-output boundary (the FeatureRecord's scalar fields
// and the DB writer's columns) and for the bar engine's EWMA/threshold
// math, which uses IEEE-754 doubles.
package types

import "github.com/shopspring/decimal"

// Source tags which venue/market a value originated from.
type Source string

const (
	SourceDerivatives Source = "derivatives"
	SourceSpot        Source = "spot"
)

// Side of a liquidation or a resting book level, where relevant.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceLevel is one (price, size) pair from a depth snapshot or diff.
// A Size of zero means "delete this level" when applied as a diff entry.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// RawDepthEvent is an incremental order-book diff as published by a venue.
//
// PreviousFinalUpdateID is only populated by derivatives venues; spot venues
// leave it as the zero value and are sequenced via FirstUpdateID/FinalUpdateID
// instead (see orderbook.Reconciler.Apply).
type RawDepthEvent struct {
	Source                Source
	Bids                  []PriceLevel
	Asks                  []PriceLevel
	FirstUpdateID         int64
	FinalUpdateID         int64
	PreviousFinalUpdateID int64
	EventTime             int64
	TradeTime             int64
}

// DepthSnapshot is a REST-fetched full order-book snapshot used to
// (re)initialize a Reconciler after a sequence gap.
type DepthSnapshot struct {
	LastUpdateID int64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

// TradeEvent is a single aggregated trade print.
//
// MakerSide follows the venue convention documented in the spec glossary:
// true means the incoming (aggressive) order was a market sell, i.e. the
// resting maker order was a buy.
type TradeEvent struct {
	Source    Source
	Price     decimal.Decimal
	Size      decimal.Decimal
	MakerSide bool
	TradeTime int64
	EventTime int64
}

// MarkPriceEvent carries derivatives-only mark/index price and funding data.
type MarkPriceEvent struct {
	MarkPrice       decimal.Decimal
	IndexPrice      decimal.Decimal
	FundingRate     decimal.Decimal
	NextFundingTime int64
	EventTime       int64
}

// LiquidationEvent is a derivatives-only forced-liquidation print.
type LiquidationEvent struct {
	Side      Side
	AvgPrice  decimal.Decimal
	Quantity  decimal.Decimal
	TradeTime int64
	EventTime int64
}
