package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"

	"featureengine/internal/types"
)

func lvl(price, size string) types.PriceLevel {
	return types.PriceLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

// TestApplyBenignDiff covers spec scenario S1: a snapshot followed by a
// diff that removes one bid level and adds another.
func TestApplyBenignDiff(t *testing.T) {
	t.Parallel()
	r := NewReconciler()
	r.ResetFrom(types.DepthSnapshot{
		LastUpdateID: 10,
		Bids:         []types.PriceLevel{lvl("100", "2"), lvl("99", "1")},
		Asks:         []types.PriceLevel{lvl("101", "3")},
	})

	result := r.Apply(types.RawDepthEvent{
		Source:        types.SourceSpot,
		FirstUpdateID: 11,
		FinalUpdateID: 12,
		Bids:          []types.PriceLevel{lvl("100", "0"), lvl("98", "5")},
	})
	if result != Applied {
		t.Fatalf("result = %v, want Applied", result)
	}

	book := r.Book()
	bid, _, ok := book.BestBid()
	if !ok || !bid.Equal(decimal.RequireFromString("99")) {
		t.Errorf("best bid = %v, ok=%v, want 99", bid, ok)
	}
	ask, _, ok := book.BestAsk()
	if !ok || !ask.Equal(decimal.RequireFromString("101")) {
		t.Errorf("best ask = %v, ok=%v, want 101", ask, ok)
	}
	if book.LastUpdateID != 12 {
		t.Errorf("last_update_id = %d, want 12", book.LastUpdateID)
	}

	var remainingBids []string
	book.Bids(func(p, _ decimal.Decimal) { remainingBids = append(remainingBids, p.String()) })
	if len(remainingBids) != 2 || remainingBids[0] != "99" || remainingBids[1] != "98" {
		t.Errorf("remaining bids = %v, want [99 98]", remainingBids)
	}
}

// TestApplyStaleDiff covers spec scenario S2: a diff fully behind the
// book's current last_update_id is dropped and the book is untouched.
func TestApplyStaleDiff(t *testing.T) {
	t.Parallel()
	r := NewReconciler()
	r.ResetFrom(types.DepthSnapshot{
		LastUpdateID: 12,
		Bids:         []types.PriceLevel{lvl("99", "1")},
		Asks:         []types.PriceLevel{lvl("101", "3")},
	})

	result := r.Apply(types.RawDepthEvent{
		Source:        types.SourceSpot,
		FirstUpdateID: 9,
		FinalUpdateID: 10,
		Bids:          []types.PriceLevel{lvl("99", "99")},
	})
	if result != DroppedStale {
		t.Fatalf("result = %v, want DroppedStale", result)
	}

	bid, size, _ := r.Book().BestBid()
	if !bid.Equal(decimal.RequireFromString("99")) || !size.Equal(decimal.RequireFromString("1")) {
		t.Errorf("book mutated by stale diff: bid=%v size=%v", bid, size)
	}
}

// TestApplyGap covers spec scenario S3: a diff whose first_update_id skips
// ahead of the book's last_update_id+1 signals Reinitialize.
func TestApplyGap(t *testing.T) {
	t.Parallel()
	r := NewReconciler()
	r.ResetFrom(types.DepthSnapshot{LastUpdateID: 12})

	result := r.Apply(types.RawDepthEvent{
		Source:        types.SourceSpot,
		FirstUpdateID: 20,
		FinalUpdateID: 25,
	})
	if result != Reinitialize {
		t.Fatalf("result = %v, want Reinitialize", result)
	}
}

// TestApplyIdempotence covers testable property 9: re-applying the same
// depth event after it was Applied returns DroppedStale and leaves the
// book unchanged.
func TestApplyIdempotence(t *testing.T) {
	t.Parallel()
	r := NewReconciler()
	r.ResetFrom(types.DepthSnapshot{LastUpdateID: 10})

	ev := types.RawDepthEvent{
		Source:        types.SourceSpot,
		FirstUpdateID: 11,
		FinalUpdateID: 12,
		Bids:          []types.PriceLevel{lvl("100", "5")},
	}
	if result := r.Apply(ev); result != Applied {
		t.Fatalf("first apply = %v, want Applied", result)
	}
	if result := r.Apply(ev); result != DroppedStale {
		t.Fatalf("second apply = %v, want DroppedStale", result)
	}
	bid, size, _ := r.Book().BestBid()
	if !bid.Equal(decimal.RequireFromString("100")) || !size.Equal(decimal.RequireFromString("5")) {
		t.Errorf("book changed by duplicate apply: bid=%v size=%v", bid, size)
	}
}

func TestDerivativesGapUsesPreviousFinalUpdateID(t *testing.T) {
	t.Parallel()
	r := NewReconciler()
	r.ResetFrom(types.DepthSnapshot{LastUpdateID: 100})

	// previous_final_update_id matches -> Applied even though first_update_id
	// does not follow the spot rule.
	result := r.Apply(types.RawDepthEvent{
		Source:                types.SourceDerivatives,
		PreviousFinalUpdateID: 100,
		FirstUpdateID:         500,
		FinalUpdateID:         501,
	})
	if result != Applied {
		t.Fatalf("result = %v, want Applied", result)
	}

	// Now previous_final_update_id no longer matches -> Reinitialize.
	result = r.Apply(types.RawDepthEvent{
		Source:                types.SourceDerivatives,
		PreviousFinalUpdateID: 999,
		FirstUpdateID:         502,
		FinalUpdateID:         503,
	})
	if result != Reinitialize {
		t.Fatalf("result = %v, want Reinitialize", result)
	}
}

func TestZeroSizeRemovesLevel(t *testing.T) {
	t.Parallel()
	r := NewReconciler()
	r.ResetFrom(types.DepthSnapshot{
		LastUpdateID: 1,
		Bids:         []types.PriceLevel{lvl("100", "2")},
	})
	r.Apply(types.RawDepthEvent{
		Source:        types.SourceSpot,
		FirstUpdateID: 2,
		FinalUpdateID: 2,
		Bids:          []types.PriceLevel{lvl("100", "0")},
	})
	if !r.Book().Empty() {
		t.Error("book should be empty after removing its only level")
	}
}

func TestBestBidAskEmptyBook(t *testing.T) {
	t.Parallel()
	b := NewBook()
	if _, _, ok := b.BestBid(); ok {
		t.Error("BestBid should return ok=false on an empty book")
	}
	if _, _, ok := b.BestAsk(); ok {
		t.Error("BestAsk should return ok=false on an empty book")
	}
}
