// Package merger implements the per-source stream merger: the hot loop
// that fuses one venue source's depth/trade/mark/liquidation streams into
// a sequence of published FeatureRecords.
package merger

import (
	"context"

	"github.com/shopspring/decimal"

	"featureengine/internal/bar"
	"featureengine/internal/barhistory"
	"featureengine/internal/fanout"
	"featureengine/internal/orderbook"
	"featureengine/internal/types"
)

// obiMargins are the ranged-OBI bands recomputed on every applied depth
// event, alongside the single best-level OBI.
var obiMargins = []float64{0.005, 0.01}

// Merger is the single task owning one source's OrderBook and three bar
// engines (tick, volume, dollar imbalance). It consumes its four input
// channels in a ready-set select and publishes a FeatureRecord per event
// through its Hub.
type Merger struct {
	source types.Source

	depth       <-chan types.RawDepthEvent
	trade       <-chan types.TradeEvent
	markPrice   <-chan types.MarkPriceEvent
	liquidation <-chan types.LiquidationEvent

	reconciler *orderbook.Reconciler
	tickBar    *bar.Engine
	volumeBar  *bar.Engine
	dollarBar  *bar.Engine

	tickHistory   *barhistory.Manager
	volumeHistory *barhistory.Manager
	dollarHistory *barhistory.Manager

	hub *fanout.Hub

	rec types.FeatureRecord

	snapshotFn func(context.Context) (types.DepthSnapshot, error)

	ctx context.Context
}

// Inputs groups a Merger's four consumption channels. Spot sources leave
// MarkPrice/Liquidation nil — Run's select skips nil channels, so a spot
// merger effectively runs a 2-way select.
type Inputs struct {
	Depth       <-chan types.RawDepthEvent
	Trade       <-chan types.TradeEvent
	MarkPrice   <-chan types.MarkPriceEvent
	Liquidation <-chan types.LiquidationEvent
}

// New builds a Merger for one source. snapshotFn is called to re-fetch a
// REST snapshot whenever the reconciler signals Reinitialize.
func New(source types.Source, in Inputs, hub *fanout.Hub, historyCapacity int, snapshotFn func(context.Context) (types.DepthSnapshot, error)) *Merger {
	cfg := bar.DefaultConfig()
	return &Merger{
		source:        source,
		depth:         in.Depth,
		trade:         in.Trade,
		markPrice:     in.MarkPrice,
		liquidation:   in.Liquidation,
		reconciler:    orderbook.NewReconciler(),
		tickBar:       bar.NewEngine(bar.KindTick, cfg),
		volumeBar:     bar.NewEngine(bar.KindVolume, cfg),
		dollarBar:     bar.NewEngine(bar.KindDollar, cfg),
		tickHistory:   barhistory.NewManager(historyCapacity),
		volumeHistory: barhistory.NewManager(historyCapacity),
		dollarHistory: barhistory.NewManager(historyCapacity),
		hub:           hub,
		rec:           types.FeatureRecord{Source: source},
		snapshotFn:    snapshotFn,
	}
}

// Hub returns the fan-out hub consumers subscribe to.
func (m *Merger) Hub() *fanout.Hub { return m.hub }

// Run drives the merge loop until ctx is cancelled. It never returns an
// error: neither the bar engines nor the reconciler report failures to it,
// and it performs no invariant checks of its own.
func (m *Merger) Run(ctx context.Context) {
	m.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.depth:
			if !ok {
				m.depth = nil
				continue
			}
			m.handleDepth(ctx, ev)
		case ev, ok := <-m.trade:
			if !ok {
				m.trade = nil
				continue
			}
			m.handleTrade(ev)
		case ev, ok := <-m.markPrice:
			if !ok {
				m.markPrice = nil
				continue
			}
			m.handleMarkPrice(ev)
		case ev, ok := <-m.liquidation:
			if !ok {
				m.liquidation = nil
				continue
			}
			m.handleLiquidation(ev)
		}
	}
}

func (m *Merger) handleTrade(ev types.TradeEvent) {
	m.rec.Price = ev.Price
	qty, _ := ev.Size.Float64()
	price, _ := ev.Price.Float64()

	if ev.MakerSide {
		m.rec.MakerQuantity = m.rec.MakerQuantity.Add(ev.Size)
	} else {
		m.rec.TakerQuantity = m.rec.TakerQuantity.Add(ev.Size)
	}

	m.advanceBar(m.tickBar, m.tickHistory, &m.rec.TickBar, ev.TradeTime, price, qty)
	m.advanceBar(m.volumeBar, m.volumeHistory, &m.rec.VolumeBar, ev.TradeTime, price, qty)
	m.advanceBar(m.dollarBar, m.dollarHistory, &m.rec.DollarBar, ev.TradeTime, price, qty)

	m.rec.EventType = types.EventTrade
	m.rec.TradeTime = ev.TradeTime
	m.rec.EventTime = ev.EventTime

	m.publish()

	m.rec.MakerQuantity = decimal.Zero
	m.rec.TakerQuantity = decimal.Zero
}

// advanceBar feeds one tick to engine, updates snap's live fields, and (on
// bar completion) records the closed bar into history and updates snap's
// last-bar fields.
func (m *Merger) advanceBar(engine *bar.Engine, history *barhistory.Manager, snap *types.BarSnapshot, tradeTime int64, price, qty float64) {
	completed, closed := engine.OnTick(tradeTime, price, qty)
	if closed {
		agg, _ := completed.Aggressive()
		aggVol, _ := completed.AggressiveVol()
		history.Add(barhistory.Entry{
			ID:        completed.ID,
			Imbalance: completed.Imbalance,
			Threshold: completed.Threshold,
			VWAP:      completed.VWAP,
			CVD:       completed.CVD,
			TS:        completed.TS,
			TE:        completed.TE,
		})
		snap.LastBarID = completed.ID
		snap.LastImbalance = completed.Imbalance
		snap.LastThreshold = completed.Threshold
		snap.LiveAggressive = agg
		snap.LiveAggressiveVol = aggVol
	}
	snap.LiveImbalance = engine.LiveImbalance()
	snap.LiveThreshold = engine.LiveThreshold()
	snap.LiveVWAP = engine.LiveVWAP()
	snap.LiveCVD = engine.LiveCVD()
}

func (m *Merger) handleDepth(ctx context.Context, ev types.RawDepthEvent) {
	if m.rec.Price.IsZero() {
		return
	}

	prevBid := orderbook.CaptureBestBid(m.reconciler.Book())
	prevAsk := orderbook.CaptureBestAsk(m.reconciler.Book())

	result := m.reconciler.Apply(ev)
	switch result {
	case orderbook.DroppedStale:
		return
	case orderbook.Reinitialize:
		m.resync(ctx)
		return
	}

	book := m.reconciler.Book()
	newBid := orderbook.CaptureBestBid(book)
	newAsk := orderbook.CaptureBestAsk(book)

	m.rec.OBI = orderbook.Imbalance(book)
	m.rec.OBIRange = m.rec.OBIRange[:0]
	for _, margin := range obiMargins {
		m.rec.OBIRange = append(m.rec.OBIRange, orderbook.ImbalanceRanged(book, m.rec.Price, margin))
	}
	if spread, ok := orderbook.Spread(book); ok {
		m.rec.Spread = spread
	}
	if bid, _, ok := book.BestBid(); ok {
		m.rec.BestBid, _ = bid.Float64()
	}
	if ask, _, ok := book.BestAsk(); ok {
		m.rec.BestAsk, _ = ask.Float64()
	}
	m.rec.FlowImbalance = orderbook.FlowImbalance(prevBid, newBid, prevAsk, newAsk)

	m.rec.EventType = types.EventDepth
	m.rec.TradeTime = ev.TradeTime
	m.rec.EventTime = ev.EventTime
	m.publish()
}

// resync re-establishes the book from a fresh REST snapshot after a
// detected sequence gap. If the fetch fails the book is left as it was, and
// the next depth event is checked against it again. Trade and
// mark/liquidation publishing never wait on the book; depth handling is
// gated only on a non-zero trade price, not on the book being non-empty.
func (m *Merger) resync(ctx context.Context) {
	snap, err := m.snapshotFn(ctx)
	if err != nil {
		return
	}
	m.reconciler.ResetFrom(snap)
}

func (m *Merger) handleMarkPrice(ev types.MarkPriceEvent) {
	m.rec.MarkPrice, _ = ev.MarkPrice.Float64()
	m.rec.IndexPrice, _ = ev.IndexPrice.Float64()
	m.rec.FundingRate, _ = ev.FundingRate.Float64()
	m.rec.NextFundingTime = ev.NextFundingTime

	m.rec.EventType = types.EventMarkPrice
	m.rec.EventTime = ev.EventTime
	m.publish()

	m.rec.MarkPrice = 0
	m.rec.IndexPrice = 0
	m.rec.FundingRate = 0
	m.rec.NextFundingTime = 0
}

func (m *Merger) handleLiquidation(ev types.LiquidationEvent) {
	m.rec.LiquidationSide = ev.Side
	m.rec.LiquidationPrice, _ = ev.AvgPrice.Float64()
	m.rec.LiquidationQty, _ = ev.Quantity.Float64()
	m.rec.LiquidationDollar = m.rec.LiquidationQty * m.rec.LiquidationPrice

	m.rec.EventType = types.EventLiquidation
	m.rec.TradeTime = ev.TradeTime
	m.rec.EventTime = ev.EventTime
	m.publish()

	m.rec.LiquidationSide = ""
	m.rec.LiquidationPrice = 0
	m.rec.LiquidationQty = 0
	m.rec.LiquidationDollar = 0
}

func (m *Merger) publish() {
	m.rec.ProcessedTime = nowMS()
	var done <-chan struct{}
	if m.ctx != nil {
		done = m.ctx.Done()
	}
	m.hub.Publish(m.rec.Clone(), done)
}
