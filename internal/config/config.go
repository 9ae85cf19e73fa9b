// Package config defines environment-driven configuration for the feature
// engine. There is no config file: every setting is optional with a
// default, read via viper's AutomaticEnv binding directly against the
// process environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// NoSymbol is the sentinel value that disables spawning the venue task for
// a symbol slot.
const NoSymbol = "NO_SYMBOL"

// Config is the full set of environment-driven settings.
type Config struct {
	SymbolBinanceFut string
	SymbolBinanceSpt string

	SymbolUpbitKRW  string
	SymbolUpbitBTC  string
	SymbolUpbitUSDT string

	TableFut string
	TableSpt string

	DataDump bool

	ChannelCapacity int
}

// Load reads Config from the environment, applying defaults for anything
// unset. It never fails: every field has a safe zero-config default, per
// the external-interfaces table (all settings optional).
func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("symbols_binance_fut", NoSymbol)
	v.SetDefault("symbols_binance_spt", NoSymbol)
	v.SetDefault("symbols_upbit_krw", NoSymbol)
	v.SetDefault("symbols_upbit_btc", NoSymbol)
	v.SetDefault("symbols_upbit_usdt", NoSymbol)
	v.SetDefault("table_fut", "")
	v.SetDefault("table_spt", "")
	v.SetDefault("data_dump", false)
	v.SetDefault("channel_capacity", 999)

	return &Config{
		SymbolBinanceFut: v.GetString("symbols_binance_fut"),
		SymbolBinanceSpt: v.GetString("symbols_binance_spt"),
		SymbolUpbitKRW:   v.GetString("symbols_upbit_krw"),
		SymbolUpbitBTC:   v.GetString("symbols_upbit_btc"),
		SymbolUpbitUSDT:  v.GetString("symbols_upbit_usdt"),
		TableFut:         v.GetString("table_fut"),
		TableSpt:         v.GetString("table_spt"),
		DataDump:         v.GetBool("data_dump"),
		ChannelCapacity:  v.GetInt("channel_capacity"),
	}
}

// Enabled reports whether a symbol slot is active (not the NO_SYMBOL
// sentinel and not empty).
func Enabled(symbol string) bool {
	return symbol != "" && symbol != NoSymbol
}

