package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"featureengine/internal/broadcast"
	"featureengine/internal/config"
	"featureengine/internal/dbwriter"
	"featureengine/internal/fanout"
	"featureengine/internal/ingest"
	"featureengine/internal/merger"
	"featureengine/internal/strategy"
	"featureengine/internal/types"
)

const barHistoryCapacity = 100

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("starting feature engine")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())

	var mergers []*merger.Merger
	var tables []string // DB table per merger, parallel to mergers

	if config.Enabled(cfg.SymbolBinanceFut) {
		m := startDerivatives(ctx, cfg)
		mergers = append(mergers, m)
		tables = append(tables, cfg.TableFut)
	}
	if config.Enabled(cfg.SymbolBinanceSpt) {
		m := startSpot(ctx, cfg.SymbolBinanceSpt, cfg.ChannelCapacity)
		mergers = append(mergers, m)
		tables = append(tables, cfg.TableSpt)
	}
	for _, symbol := range []string{cfg.SymbolUpbitKRW, cfg.SymbolUpbitBTC, cfg.SymbolUpbitUSDT} {
		if config.Enabled(symbol) {
			m := startSpot(ctx, symbol, cfg.ChannelCapacity)
			mergers = append(mergers, m)
			tables = append(tables, cfg.TableSpt)
		}
	}

	if len(mergers) == 0 {
		log.Println("no symbols configured (all NO_SYMBOL); nothing to do")
	}

	var dashboardCh chan types.FeatureRecord

	for i, m := range mergers {
		// One evaluator per merger, so each bar history holds a single
		// source's bars and has a single writer.
		strategyEval := strategy.NewEvaluator(barHistoryCapacity, nil)
		strategyCh := m.Hub().SubscribeMustDeliver(cfg.ChannelCapacity)
		go strategyEval.Run(ctx, strategyCh)

		if cfg.DataDump {
			table := tables[i]
			if table == "" {
				table = "feature_records"
			}
			dbURL := os.Getenv("DATABASE_URL")
			writer, err := dbwriter.Open(dbURL, table, dbwriter.DefaultBatchSize)
			if err != nil {
				log.Printf("dbwriter: disabled, open failed: %v", err)
			} else {
				dbCh := m.Hub().SubscribeMustDeliver(cfg.ChannelCapacity)
				go dbwriter.Run(ctx, writer, dbCh)
			}
		}

		if dashboardCh == nil {
			dashboardCh = make(chan types.FeatureRecord, cfg.ChannelCapacity)
		}
		bestEffort := m.Hub().SubscribeBestEffort(cfg.ChannelCapacity)
		go relay(ctx, bestEffort, dashboardCh)

		go m.Run(ctx)
	}

	if dashboardCh != nil {
		server := broadcast.NewServer(dashboardCh)
		go func() {
			if err := server.Start(":8080"); err != nil {
				log.Printf("dashboard server stopped: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	cancel()
}

// relay forwards records from one merger's best-effort subscription into
// the dashboard's single shared channel, since multiple mergers share one
// dashboard server.
func relay(ctx context.Context, in <-chan types.FeatureRecord, out chan<- types.FeatureRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- rec:
			default:
			}
		}
	}
}

func startDerivatives(ctx context.Context, cfg *config.Config) *merger.Merger {
	depthCh := make(chan types.RawDepthEvent, cfg.ChannelCapacity)
	tradeCh := make(chan types.TradeEvent, cfg.ChannelCapacity)
	markCh := make(chan types.MarkPriceEvent, cfg.ChannelCapacity)
	liqCh := make(chan types.LiquidationEvent, cfg.ChannelCapacity)

	adapter := &ingest.DerivativesAdapter{
		Symbol:      cfg.SymbolBinanceFut,
		Depth:       depthCh,
		Trade:       tradeCh,
		MarkPrice:   markCh,
		Liquidation: liqCh,
	}
	adapter.Start(ctx)

	symbol := cfg.SymbolBinanceFut
	snapshotFn := func(c context.Context) (types.DepthSnapshot, error) {
		return ingest.FetchDerivativesSnapshot(c, symbol)
	}

	hub := fanout.NewHub()
	m := merger.New(types.SourceDerivatives, merger.Inputs{
		Depth:       depthCh,
		Trade:       tradeCh,
		MarkPrice:   markCh,
		Liquidation: liqCh,
	}, hub, barHistoryCapacity, snapshotFn)
	return m
}

func startSpot(ctx context.Context, symbol string, channelCapacity int) *merger.Merger {
	depthCh := make(chan types.RawDepthEvent, channelCapacity)
	tradeCh := make(chan types.TradeEvent, channelCapacity)

	adapter := &ingest.SpotAdapter{
		Symbol: symbol,
		Depth:  depthCh,
		Trade:  tradeCh,
	}
	adapter.Start(ctx)

	snapshotFn := func(c context.Context) (types.DepthSnapshot, error) {
		return ingest.FetchSpotSnapshot(c, symbol)
	}

	hub := fanout.NewHub()
	m := merger.New(types.SourceSpot, merger.Inputs{
		Depth: depthCh,
		Trade: tradeCh,
	}, hub, barHistoryCapacity, snapshotFn)
	return m
}
