package orderbook

import "github.com/shopspring/decimal"

// BestQuote is a cached best-bid or best-ask snapshot, used by
// FlowImbalance so it can compare the *previous* best against the new one
// (Design Note: book-side feature computations that depend on the previous
// best-bid/ask must read it before the current update overwrites it).
type BestQuote struct {
	Price decimal.Decimal
	Size  decimal.Decimal
	OK    bool
}

// Imbalance computes the order-book imbalance from the best bid/ask
// quantities: (bid_qty - ask_qty) / (bid_qty + ask_qty). Returns 0 when the
// book has no quotes on one or both sides (denominator would be zero).
func Imbalance(b *Book) float64 {
	_, bidSize, bidOK := b.BestBid()
	_, askSize, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0
	}
	total := bidSize.Add(askSize)
	if total.IsZero() {
		return 0
	}
	return bidSize.Sub(askSize).Div(total).InexactFloat64()
}

// ImbalanceRanged computes the same imbalance formula, but summed over all
// levels with price within [price*(1-margin), price*(1+margin)] on each
// side.
func ImbalanceRanged(b *Book, price decimal.Decimal, margin float64) float64 {
	m := decimal.NewFromFloat(margin)
	one := decimal.NewFromInt(1)
	lo := price.Mul(one.Sub(m))
	hi := price.Mul(one.Add(m))

	bidQty := decimal.Zero
	b.Bids(func(p, size decimal.Decimal) {
		if p.GreaterThanOrEqual(lo) && p.LessThanOrEqual(hi) {
			bidQty = bidQty.Add(size)
		}
	})
	askQty := decimal.Zero
	b.Asks(func(p, size decimal.Decimal) {
		if p.GreaterThanOrEqual(lo) && p.LessThanOrEqual(hi) {
			askQty = askQty.Add(size)
		}
	})

	total := bidQty.Add(askQty)
	if total.IsZero() {
		return 0
	}
	return bidQty.Sub(askQty).Div(total).InexactFloat64()
}

// Spread returns best_ask - best_bid as a float, and false if either side of
// the book is empty.
func Spread(b *Book) (float64, bool) {
	bid, _, bidOK := b.BestBid()
	ask, _, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return ask.Sub(bid).InexactFloat64(), true
}

// CaptureBestBid/CaptureBestAsk snapshot the current best quote on a side,
// for use as the "previous" argument to FlowImbalance before the caller
// applies the next depth event.
func CaptureBestBid(b *Book) BestQuote {
	p, s, ok := b.BestBid()
	return BestQuote{Price: p, Size: s, OK: ok}
}

func CaptureBestAsk(b *Book) BestQuote {
	p, s, ok := b.BestAsk()
	return BestQuote{Price: p, Size: s, OK: ok}
}

// FlowImbalance implements the classical order-flow imbalance (OFI) measure
// between a previous and a new best-bid/best-ask pair. Positive values mean
// net buying pressure.
//
// Bid-side contribution: if the new best bid price is higher than the
// previous, contribute +new_qty; if equal, contribute new_qty-prev_qty; if
// lower, contribute -prev_qty. The ask side mirrors this (price up
// contributes -prev_qty, price down contributes +new_qty). Total OFI is
// bid_term - ask_term.
func FlowImbalance(prevBid, newBid, prevAsk, newAsk BestQuote) float64 {
	bidTerm := bidQuoteTerm(prevBid, newBid)
	askTerm := askQuoteTerm(prevAsk, newAsk)
	return bidTerm - askTerm
}

func bidQuoteTerm(prev, cur BestQuote) float64 {
	switch {
	case !prev.OK && !cur.OK:
		return 0
	case !prev.OK:
		return cur.Size.InexactFloat64()
	case !cur.OK:
		return -prev.Size.InexactFloat64()
	}
	switch {
	case cur.Price.GreaterThan(prev.Price):
		return cur.Size.InexactFloat64()
	case cur.Price.Equal(prev.Price):
		return cur.Size.Sub(prev.Size).InexactFloat64()
	default:
		return -prev.Size.InexactFloat64()
	}
}

// askQuoteTerm mirrors bidQuoteTerm: a rising ask price means liquidity
// retreated (contribute -prev_qty), a falling ask price means new liquidity
// stepped in (contribute +new_qty).
func askQuoteTerm(prev, cur BestQuote) float64 {
	switch {
	case !prev.OK && !cur.OK:
		return 0
	case !prev.OK:
		return cur.Size.InexactFloat64()
	case !cur.OK:
		return -prev.Size.InexactFloat64()
	}
	switch {
	case cur.Price.GreaterThan(prev.Price):
		return -prev.Size.InexactFloat64()
	case cur.Price.Equal(prev.Price):
		return cur.Size.Sub(prev.Size).InexactFloat64()
	default:
		return cur.Size.InexactFloat64()
	}
}

// NearPriceLevels returns the bid levels strictly below price and the ask
// levels strictly above price, each limited to the given margin band, for
// consumer strategies that want to see resting liquidity around the current
// trade price without the whole book.
func NearPriceLevels(b *Book, price decimal.Decimal, margin float64) (bids, asks []PriceLevel) {
	m := decimal.NewFromFloat(margin)
	one := decimal.NewFromInt(1)
	lo := price.Mul(one.Sub(m))
	hi := price.Mul(one.Add(m))

	b.Bids(func(p, size decimal.Decimal) {
		if p.LessThan(price) && p.GreaterThanOrEqual(lo) {
			bids = append(bids, PriceLevel{Price: p, Size: size})
		}
	})
	b.Asks(func(p, size decimal.Decimal) {
		if p.GreaterThan(price) && p.LessThanOrEqual(hi) {
			asks = append(asks, PriceLevel{Price: p, Size: size})
		}
	})
	return bids, asks
}

// PriceLevel mirrors types.PriceLevel but lives in this package to avoid an
// import cycle for the NearPriceLevels helper's return type; callers that
// need types.PriceLevel can convert trivially.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}
