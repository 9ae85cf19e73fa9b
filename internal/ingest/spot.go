package ingest

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"featureengine/internal/types"
)

// SpotAdapter streams depth and trade events for one spot-venue symbol.
// Spot venues never publish mark price or liquidation, so this adapter has
// no corresponding channels (the Merger leaves those select arms nil for a
// spot source, per the Per-Source Stream Merger's 4-way select).
type SpotAdapter struct {
	Symbol string

	Depth chan<- types.RawDepthEvent
	Trade chan<- types.TradeEvent
}

func (a *SpotAdapter) Start(ctx context.Context) {
	go runReconnectLoop(ctx, "spot-depth", a.depthURL(), a.consumeDepth)
	go runReconnectLoop(ctx, "spot-trade", a.tradeURL(), a.consumeTrade)
}

func (a *SpotAdapter) depthURL() string {
	return fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@depth@100ms", a.Symbol)
}
func (a *SpotAdapter) tradeURL() string {
	return fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@trade", a.Symbol)
}

type wireSpotDepth struct {
	U  int64      `json:"U"`
	U2 int64      `json:"u"`
	E  int64      `json:"E"`
	B  [][]string `json:"b"`
	A  [][]string `json:"a"`
}

func (a *SpotAdapter) consumeDepth(conn *websocket.Conn) error {
	for {
		var ev wireSpotDepth
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		a.Depth <- types.RawDepthEvent{
			Source:        types.SourceSpot,
			Bids:          parseLevels(ev.B),
			Asks:          parseLevels(ev.A),
			FirstUpdateID: ev.U,
			FinalUpdateID: ev.U2,
			EventTime:     ev.E,
			TradeTime:     ev.E,
		}
	}
}

type wireSpotTrade struct {
	P string `json:"p"`
	Q string `json:"q"`
	T int64  `json:"T"`
	E int64  `json:"E"`
	M bool   `json:"m"`
}

func (a *SpotAdapter) consumeTrade(conn *websocket.Conn) error {
	for {
		var ev wireSpotTrade
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		price, err1 := decimal.NewFromString(ev.P)
		size, err2 := decimal.NewFromString(ev.Q)
		if err1 != nil || err2 != nil {
			continue
		}
		a.Trade <- types.TradeEvent{
			Source:    types.SourceSpot,
			Price:     price,
			Size:      size,
			MakerSide: ev.M,
			TradeTime: ev.T,
			EventTime: ev.E,
		}
	}
}
