// Package orderbook owns the Book Reconciler and the pure Book Feature
// Functions described by the spec's sections 4.A and 4.B: turning a
// snapshot + incremental diff stream into a consistent priced ladder, and
// deriving imbalance/spread/flow-imbalance scalars from it.
//
// A Book is owned exclusively by the single Merger goroutine that mutates
// it via Reconciler.Apply; nothing else may touch its ladders.
package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"

	"featureengine/internal/types"
)

// ApplyResult is the outcome of feeding one RawDepthEvent to a Reconciler.
type ApplyResult int

const (
	// Applied means the event was merged into the ladder.
	Applied ApplyResult = iota
	// DroppedStale means the event's update-id range was wholly behind the
	// book's current state; the book was left untouched.
	DroppedStale
	// Reinitialize means a sequence gap was detected; the caller must
	// discard the book's current state, refetch a snapshot, and call
	// Reconciler.ResetFrom before applying further events.
	Reinitialize
)

// Book is the live priced ladder for one venue/market. Bids are ordered so
// the maximum key is the best bid; asks so the minimum key is the best ask.
// No level ever has zero size: a zero-size update removes the level.
type Book struct {
	bids map[string]decimal.Decimal // price string -> size
	asks map[string]decimal.Decimal

	bidPrices sortedPrices // descending
	askPrices sortedPrices // ascending

	LastUpdateID int64
	TradeTime    int64
	EventTime    int64
	LastSource   types.Source
}

// NewBook returns an empty book, ready to accept either a ResetFrom snapshot
// or diff events directly (an empty book degrades gracefully: Imbalance
// returns 0 and Spread reports ok=false when a side has no levels).
func NewBook() *Book {
	return &Book{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

// Reconciler sequences RawDepthEvents into a Book. It is the single writer
// for that Book; the spec's sequencing rules (4.A) are enforced here.
type Reconciler struct {
	book *Book
}

// NewReconciler creates a reconciler over a fresh, empty book.
func NewReconciler() *Reconciler {
	return &Reconciler{book: NewBook()}
}

// Book returns the ladder this reconciler maintains. Callers may read it
// freely (best_bid/best_ask/iteration); only the reconciler may mutate it.
func (r *Reconciler) Book() *Book { return r.book }

// ResetFrom installs a ladder from a REST snapshot and sets last_update_id
// to the snapshot's id, discarding any prior state.
func (r *Reconciler) ResetFrom(snap types.DepthSnapshot) {
	b := NewBook()
	for _, lvl := range snap.Bids {
		setLevel(b.bids, &b.bidPrices, lvl.Price, lvl.Size, false)
	}
	for _, lvl := range snap.Asks {
		setLevel(b.asks, &b.askPrices, lvl.Price, lvl.Size, true)
	}
	b.LastUpdateID = snap.LastUpdateID
	r.book = b
}

// Apply feeds one RawDepthEvent, in arrival order, into the book.
//
// For derivatives depth the gap check is the venue-documented rule:
// previous_final_update_id must equal the book's current last_update_id.
// For spot depth the gap check is first_update_id <= last_update_id+1 <=
// final_update_id.
func (r *Reconciler) Apply(ev types.RawDepthEvent) ApplyResult {
	b := r.book

	if ev.FinalUpdateID <= b.LastUpdateID {
		return DroppedStale
	}

	if ev.Source == types.SourceDerivatives {
		if b.LastUpdateID != 0 && ev.PreviousFinalUpdateID != b.LastUpdateID {
			return Reinitialize
		}
	} else {
		if b.LastUpdateID != 0 && !(ev.FirstUpdateID <= b.LastUpdateID+1 && b.LastUpdateID+1 <= ev.FinalUpdateID) {
			return Reinitialize
		}
	}

	for _, lvl := range ev.Bids {
		setLevel(b.bids, &b.bidPrices, lvl.Price, lvl.Size, false)
	}
	for _, lvl := range ev.Asks {
		setLevel(b.asks, &b.askPrices, lvl.Price, lvl.Size, true)
	}

	b.LastUpdateID = ev.FinalUpdateID
	if ev.TradeTime > b.TradeTime {
		b.TradeTime = ev.TradeTime
	}
	if ev.EventTime > b.EventTime {
		b.EventTime = ev.EventTime
	}
	b.LastSource = ev.Source

	return Applied
}

// setLevel inserts, replaces, or (on zero size) deletes one price level and
// keeps the matching sorted-price index consistent.
func setLevel(levels map[string]decimal.Decimal, prices *sortedPrices, price, size decimal.Decimal, ascending bool) {
	key := price.String()
	_, existed := levels[key]

	if size.IsZero() {
		if existed {
			delete(levels, key)
			prices.remove(price)
		}
		return
	}

	levels[key] = size
	if !existed {
		prices.insert(price, ascending)
	}
}

// sortedPrices is a small sorted-slice index over a book side, kept in
// lockstep with the map so BestBid/BestAsk/ordered iteration avoid an O(n
// log n) sort on every query.
type sortedPrices struct {
	values []decimal.Decimal
}

func (s *sortedPrices) insert(p decimal.Decimal, ascending bool) {
	i := sort.Search(len(s.values), func(i int) bool {
		if ascending {
			return s.values[i].GreaterThanOrEqual(p)
		}
		return s.values[i].LessThanOrEqual(p)
	})
	s.values = append(s.values, decimal.Decimal{})
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = p
}

func (s *sortedPrices) remove(p decimal.Decimal) {
	for i, v := range s.values {
		if v.Equal(p) {
			s.values = append(s.values[:i], s.values[i+1:]...)
			return
		}
	}
}

// BestBid returns the highest bid price and its size. ok is false when the
// book has no bids.
func (b *Book) BestBid() (price, size decimal.Decimal, ok bool) {
	if len(b.bidPrices.values) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	p := b.bidPrices.values[0]
	return p, b.bids[p.String()], true
}

// BestAsk returns the lowest ask price and its size. ok is false when the
// book has no asks.
func (b *Book) BestAsk() (price, size decimal.Decimal, ok bool) {
	if len(b.askPrices.values) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	p := b.askPrices.values[0]
	return p, b.asks[p.String()], true
}

// Bids calls fn for every bid level, best (highest price) first.
func (b *Book) Bids(fn func(price, size decimal.Decimal)) {
	for _, p := range b.bidPrices.values {
		fn(p, b.bids[p.String()])
	}
}

// Asks calls fn for every ask level, best (lowest price) first.
func (b *Book) Asks(fn func(price, size decimal.Decimal)) {
	for _, p := range b.askPrices.values {
		fn(p, b.asks[p.String()])
	}
}

// Empty reports whether the book has no levels on either side.
func (b *Book) Empty() bool {
	return len(b.bidPrices.values) == 0 && len(b.askPrices.values) == 0
}
