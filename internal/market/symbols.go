package market

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SymbolInfo is the per-symbol base line used when every upstream source
// is down and a synthetic sample has to be generated.
type SymbolInfo struct {
	BasePrice  float64 `yaml:"base_price"`
	BaseVolume int64   `yaml:"base_volume"`
}

// Table maps symbols to their base info. Lookups for unknown symbols
// derive a stable base price from the symbol itself, so any identifier a
// viewer asks for yields consistent fallbacks across cycles.
type Table struct {
	symbols map[string]SymbolInfo
}

// DefaultTable returns the built-in base table for the tracked indices.
func DefaultTable() *Table {
	return &Table{symbols: map[string]SymbolInfo{
		"NIFTY":     {BasePrice: 21000, BaseVolume: 1_000_000},
		"SENSEX":    {BasePrice: 70000, BaseVolume: 800_000},
		"BANKNIFTY": {BasePrice: 45000, BaseVolume: 600_000},
	}}
}

// LoadTable reads a YAML symbol table and merges it over the defaults.
// File entries win on conflict.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	var entries map[string]SymbolInfo
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse symbol table: %w", err)
	}

	t := DefaultTable()
	for sym, info := range entries {
		t.symbols[Normalize(sym)] = info
	}
	return t, nil
}

// Normalize canonicalizes a symbol identifier.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup returns the base info for a symbol. Unknown symbols get a price
// derived from an FNV hash of the identifier, bounded to [1000, 51000),
// and a mid-range base volume.
func (t *Table) Lookup(symbol string) SymbolInfo {
	if info, ok := t.symbols[Normalize(symbol)]; ok {
		return info
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(Normalize(symbol)))
	return SymbolInfo{
		BasePrice:  1000 + float64(h.Sum32()%50000),
		BaseVolume: 500_000,
	}
}

// Known reports whether the symbol is in the configured table.
func (t *Table) Known(symbol string) bool {
	_, ok := t.symbols[Normalize(symbol)]
	return ok
}
