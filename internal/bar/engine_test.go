package bar

import (
	"math"
	"testing"
)

// TestGenesisEmitsAfterCollectPeriod covers spec scenario S5: the first bar
// closes once elapsed time crosses genesis_collect_period and the running
// imbalance is non-zero, minting an id and seeding the threshold.
func TestGenesisEmitsAfterCollectPeriod(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.GenesisCollectPeriod = 100
	e := NewEngine(KindTick, cfg)

	prices := []float64{100, 101, 100, 101, 102, 101, 102, 103, 102, 103, 104}
	var completed *Completed
	for i, p := range prices {
		tt := int64(i * 12)
		c, closed := e.OnTick(tt, p, 1)
		if closed {
			completed = c
			break
		}
	}

	if completed == nil {
		t.Fatal("genesis bar never closed within the fed ticks")
	}
	if completed.ID == "" {
		t.Error("completed bar has no id")
	}
	if completed.TS > completed.TE {
		t.Errorf("ts=%d > te=%d", completed.TS, completed.TE)
	}
	if completed.Imbalance == 0 {
		t.Error("genesis bar closed with zero imbalance, violates genesis condition")
	}
	if e.thr.Threshold <= 0 {
		t.Errorf("threshold after genesis = %v, want > 0", e.thr.Threshold)
	}
	// The emitted Completed snapshot must carry the freshly seeded
	// threshold, not the engine's pre-genesis zero value (spec scenario
	// S5: "threshold seeded to |imb/tick_count|*ewma_tick_count_after_update").
	if completed.Threshold <= 0 {
		t.Errorf("completed.Threshold = %v, want > 0 (seeded genesis threshold)", completed.Threshold)
	}
	if math.Abs(completed.Threshold-e.thr.Threshold) > 1e-9 {
		t.Errorf("completed.Threshold = %v, want %v (engine's post-genesis threshold)", completed.Threshold, e.thr.Threshold)
	}
}

// TestActiveBarClosesOnThresholdCrossing drives an engine through genesis
// and confirms the next bar closes once |imb| >= imb_threshold, per
// testable property 5.
func TestActiveBarClosesOnThresholdCrossing(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.GenesisCollectPeriod = 10
	e := NewEngine(KindTick, cfg)

	// Drive genesis with a handful of monotonically rising ticks.
	for i := 0; i < 5; i++ {
		e.OnTick(int64(i*5), 100+float64(i), 1)
	}
	if e.state != StateActive {
		t.Fatal("engine did not reach ACTIVE after genesis-worthy ticks")
	}

	threshold := e.thr.Threshold
	var completed *Completed
	price := 105.0
	for i := 0; i < int(threshold)+5; i++ {
		price++
		c, closed := e.OnTick(int64(100+i), price, 1)
		if closed {
			completed = c
			break
		}
	}

	if completed == nil {
		t.Fatal("active bar never closed despite monotonic one-direction ticks")
	}
	if math.Abs(completed.Imbalance) < completed.Threshold {
		t.Errorf("|imb|=%v < threshold=%v at emission", math.Abs(completed.Imbalance), completed.Threshold)
	}
}

func TestResetPreservesThresholdStateClearsLive(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.GenesisCollectPeriod = 10
	e := NewEngine(KindVolume, cfg)
	for i := 0; i < 5; i++ {
		e.OnTick(int64(i*5), 100+float64(i), 2)
	}
	if e.state != StateActive {
		t.Fatal("expected engine to be ACTIVE after genesis ticks")
	}

	prevClose := e.thr.PrevClose
	prevEWMAImb := e.thr.EWMAImb

	e.reset()

	if e.live.Imbalance != 0 {
		t.Errorf("live imbalance after reset = %v, want 0", e.live.Imbalance)
	}
	if e.live.TickCount != 0 {
		t.Errorf("live tick count after reset = %v, want 0", e.live.TickCount)
	}
	if e.thr.PrevClose != prevClose {
		t.Errorf("PrevClose changed across reset: %v -> %v", prevClose, e.thr.PrevClose)
	}
	if e.thr.EWMAImb != prevEWMAImb {
		t.Errorf("EWMAImb changed across reset: %v -> %v", prevEWMAImb, e.thr.EWMAImb)
	}
}

func TestVWAPLaw(t *testing.T) {
	t.Parallel()
	e := NewEngine(KindTick, DefaultConfig())
	e.OnTick(0, 100, 2)
	e.OnTick(1, 102, 3)

	vwap := e.LiveVWAP()
	cumVolume := e.live.CumVolume
	cumPriceVolume := e.live.CumPriceVolume

	if math.Abs(vwap*cumVolume-cumPriceVolume) > 1e-9 {
		t.Errorf("vwap*cum_volume = %v, want %v", vwap*cumVolume, cumPriceVolume)
	}
}

func TestVWAPUndefinedWithZeroVolume(t *testing.T) {
	t.Parallel()
	e := NewEngine(KindTick, DefaultConfig())
	if v := e.LiveVWAP(); v != 0 {
		t.Errorf("LiveVWAP() before any tick = %v, want 0", v)
	}
}

func TestDollarAndVolumeIncrementsScaleByQtyAndPrice(t *testing.T) {
	t.Parallel()
	tick := NewEngine(KindTick, DefaultConfig())
	volume := NewEngine(KindVolume, DefaultConfig())
	dollar := NewEngine(KindDollar, DefaultConfig())

	tick.OnTick(0, 100, 1)
	volume.OnTick(0, 100, 1)
	dollar.OnTick(0, 100, 1)

	tick.OnTick(1, 105, 10)
	volume.OnTick(1, 105, 10)
	dollar.OnTick(1, 105, 10)

	if tick.live.Imbalance != 1 {
		t.Errorf("tick imbalance = %v, want 1", tick.live.Imbalance)
	}
	if volume.live.Imbalance != 10 {
		t.Errorf("volume imbalance = %v, want 10", volume.live.Imbalance)
	}
	if dollar.live.Imbalance != 1050 {
		t.Errorf("dollar imbalance = %v, want 1050 (sign*qty*price)", dollar.live.Imbalance)
	}
}

func TestSignNaNIsZero(t *testing.T) {
	t.Parallel()
	if got := sign(math.NaN()); got != 0 {
		t.Errorf("sign(NaN) = %v, want 0", got)
	}
}

func TestAggressiveUndefinedOnZeroDuration(t *testing.T) {
	t.Parallel()
	c := Completed{TS: 100, TE: 100, TickCount: 5}
	if _, ok := c.Aggressive(); ok {
		t.Error("Aggressive() ok=true with zero duration, want false")
	}
	if _, ok := c.AggressiveVol(); ok {
		t.Error("AggressiveVol() ok=true with zero duration, want false")
	}
}
