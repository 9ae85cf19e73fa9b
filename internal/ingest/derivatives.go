package ingest

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"featureengine/internal/types"
)

// DerivativesAdapter streams depth, trade, mark-price, and liquidation
// events for one derivatives-venue symbol, each on its own reconnecting
// websocket task, per the channel-plumbing table (one channel per
// (venue, market, event kind)).
type DerivativesAdapter struct {
	Symbol string

	Depth       chan<- types.RawDepthEvent
	Trade       chan<- types.TradeEvent
	MarkPrice   chan<- types.MarkPriceEvent
	Liquidation chan<- types.LiquidationEvent
}

// Start launches one goroutine per stream kind. It returns immediately;
// every goroutine exits when ctx is cancelled.
func (a *DerivativesAdapter) Start(ctx context.Context) {
	go runReconnectLoop(ctx, "derivatives-depth", a.depthURL(), a.consumeDepth)
	go runReconnectLoop(ctx, "derivatives-trade", a.tradeURL(), a.consumeTrade)
	go runReconnectLoop(ctx, "derivatives-markprice", a.markPriceURL(), a.consumeMarkPrice)
	go runReconnectLoop(ctx, "derivatives-liquidation", a.liquidationURL(), a.consumeLiquidation)
}

func (a *DerivativesAdapter) depthURL() string {
	return fmt.Sprintf("wss://fstream.binance.com/ws/%s@depth@100ms", a.Symbol)
}
func (a *DerivativesAdapter) tradeURL() string {
	return fmt.Sprintf("wss://fstream.binance.com/ws/%s@aggTrade", a.Symbol)
}
func (a *DerivativesAdapter) markPriceURL() string {
	return fmt.Sprintf("wss://fstream.binance.com/ws/%s@markPrice@1s", a.Symbol)
}
func (a *DerivativesAdapter) liquidationURL() string {
	return fmt.Sprintf("wss://fstream.binance.com/ws/%s@forceOrder", a.Symbol)
}

type wireDepth struct {
	U  int64      `json:"U"`
	U2 int64      `json:"u"`
	PU int64      `json:"pu"`
	E  int64      `json:"E"`
	T  int64      `json:"T"`
	B  [][]string `json:"b"`
	A  [][]string `json:"a"`
}

func (a *DerivativesAdapter) consumeDepth(conn *websocket.Conn) error {
	for {
		var ev wireDepth
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		out := types.RawDepthEvent{
			Source:                types.SourceDerivatives,
			Bids:                  parseLevels(ev.B),
			Asks:                  parseLevels(ev.A),
			FirstUpdateID:         ev.U,
			FinalUpdateID:         ev.U2,
			PreviousFinalUpdateID: ev.PU,
			EventTime:             ev.E,
			TradeTime:             ev.T,
		}
		a.Depth <- out
	}
}

type wireAggTrade struct {
	P string `json:"p"`
	Q string `json:"q"`
	T int64  `json:"T"`
	E int64  `json:"E"`
	M bool   `json:"m"`
}

func (a *DerivativesAdapter) consumeTrade(conn *websocket.Conn) error {
	for {
		var ev wireAggTrade
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		price, err1 := decimal.NewFromString(ev.P)
		size, err2 := decimal.NewFromString(ev.Q)
		if err1 != nil || err2 != nil {
			continue
		}
		a.Trade <- types.TradeEvent{
			Source:    types.SourceDerivatives,
			Price:     price,
			Size:      size,
			MakerSide: ev.M,
			TradeTime: ev.T,
			EventTime: ev.E,
		}
	}
}

type wireMarkPrice struct {
	P  string `json:"p"`
	I  string `json:"i"`
	R  string `json:"r"`
	T  int64  `json:"T"`
	E  int64  `json:"E"`
}

func (a *DerivativesAdapter) consumeMarkPrice(conn *websocket.Conn) error {
	for {
		var ev wireMarkPrice
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		mark, err1 := decimal.NewFromString(ev.P)
		index, err2 := decimal.NewFromString(ev.I)
		funding, err3 := decimal.NewFromString(ev.R)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		a.MarkPrice <- types.MarkPriceEvent{
			MarkPrice:       mark,
			IndexPrice:      index,
			FundingRate:     funding,
			NextFundingTime: ev.T,
			EventTime:       ev.E,
		}
	}
}

type wireLiquidationOrder struct {
	S  string `json:"S"`
	AP string `json:"ap"`
	Q  string `json:"q"`
	T  int64  `json:"T"`
}

type wireLiquidation struct {
	E int64                `json:"E"`
	O wireLiquidationOrder `json:"o"`
}

func (a *DerivativesAdapter) consumeLiquidation(conn *websocket.Conn) error {
	for {
		var ev wireLiquidation
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		price, err1 := decimal.NewFromString(ev.O.AP)
		qty, err2 := decimal.NewFromString(ev.O.Q)
		if err1 != nil || err2 != nil {
			continue
		}
		side := types.SideBuy
		if ev.O.S == "SELL" {
			side = types.SideSell
		}
		a.Liquidation <- types.LiquidationEvent{
			Side:      side,
			AvgPrice:  price,
			Quantity:  qty,
			TradeTime: ev.O.T,
			EventTime: ev.E,
		}
	}
}

func parseLevels(raw [][]string) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		price, err1 := decimal.NewFromString(pair[0])
		size, err2 := decimal.NewFromString(pair[1])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, types.PriceLevel{Price: price, Size: size})
	}
	return out
}
