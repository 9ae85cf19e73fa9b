// Package ingest holds the venue adapter tasks: one task per (venue,
// event-kind) that dials a websocket stream, decodes venue wire framing
// into the shared types package, and pushes onto a bounded channel for the
// Merger or Reconciler to consume.
//
// The wire decoding here is illustrative of the shape described in the
// external-interfaces section (derivatives depth U/u/pu/E/T, aggTrade
// buyer_market_maker m, mark price, liquidation) — the feature pipeline
// itself depends only on the types package, never on adapter internals.
package ingest

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectBackoff is the fixed backoff between reconnection attempts, per
// the spec's bounded-backoff recommendation.
const reconnectBackoff = 5 * time.Second

// runReconnectLoop dials url repeatedly until ctx is cancelled, running
// consume on every successful connection. A non-nil error from consume
// (including a read error on disconnect) triggers a fixed backoff before
// redialing.
func runReconnectLoop(ctx context.Context, name, url string, consume func(*websocket.Conn) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			log.Printf("%s: dial error: %v, retrying in %v", name, err, reconnectBackoff)
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		log.Printf("%s: connected", name)
		err = consume(conn)
		conn.Close()
		if err != nil {
			log.Printf("%s: stream error: %v, reconnecting in %v", name, err, reconnectBackoff)
		}
		if !sleepOrDone(ctx, reconnectBackoff) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
