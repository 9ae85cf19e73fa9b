package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SYMBOLS_BINANCE_FUT", "SYMBOLS_BINANCE_SPT",
		"SYMBOLS_UPBIT_KRW", "SYMBOLS_UPBIT_BTC", "SYMBOLS_UPBIT_USDT",
		"TABLE_FUT", "TABLE_SPT", "DATA_DUMP", "CHANNEL_CAPACITY",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.SymbolBinanceFut != NoSymbol {
		t.Errorf("SymbolBinanceFut = %q, want %q", cfg.SymbolBinanceFut, NoSymbol)
	}
	if cfg.DataDump {
		t.Error("DataDump = true, want false by default")
	}
	if cfg.ChannelCapacity != 999 {
		t.Errorf("ChannelCapacity = %d, want 999", cfg.ChannelCapacity)
	}
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("SYMBOLS_BINANCE_FUT", "BTCUSDT")
	t.Setenv("DATA_DUMP", "true")
	t.Setenv("CHANNEL_CAPACITY", "50")

	cfg := Load()
	if cfg.SymbolBinanceFut != "BTCUSDT" {
		t.Errorf("SymbolBinanceFut = %q, want BTCUSDT", cfg.SymbolBinanceFut)
	}
	if !cfg.DataDump {
		t.Error("DataDump = false, want true")
	}
	if cfg.ChannelCapacity != 50 {
		t.Errorf("ChannelCapacity = %d, want 50", cfg.ChannelCapacity)
	}
}

func TestEnabled(t *testing.T) {
	cases := []struct {
		symbol string
		want   bool
	}{
		{"", false},
		{NoSymbol, false},
		{"BTCUSDT", true},
	}
	for _, c := range cases {
		if got := Enabled(c.symbol); got != c.want {
			t.Errorf("Enabled(%q) = %v, want %v", c.symbol, got, c.want)
		}
	}
}
