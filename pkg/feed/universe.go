package feed

import (
	"github.com/StudioSol/set"
)

// Universe is the ordered set of instruments a cycle runs over. Symbols
// keep their insertion order and duplicates are ignored.
type Universe struct {
	symbols *set.LinkedHashSetString
	sectors map[string]string
}

// NewUniverse creates a universe from symbols
func NewUniverse(symbols ...string) *Universe {
	u := &Universe{
		symbols: set.NewLinkedHashSetString(),
		sectors: make(map[string]string),
	}
	for _, symbol := range symbols {
		u.Add(symbol, "")
	}
	return u
}

// Add appends a symbol. A non-empty sector replaces the known one.
func (u *Universe) Add(symbol, sector string) {
	u.symbols.Add(symbol)
	if sector != "" {
		u.sectors[symbol] = sector
	}
}

// Contains reports whether symbol belongs to the universe
func (u *Universe) Contains(symbol string) bool {
	return u.symbols.InArray(symbol)
}

// Len returns the number of symbols
func (u *Universe) Len() int {
	return u.symbols.Length()
}

// Sector returns the sector of a symbol, empty when unknown
func (u *Universe) Sector(symbol string) string {
	return u.sectors[symbol]
}

// Symbols returns the symbols in insertion order
func (u *Universe) Symbols() []string {
	symbols := make([]string, 0, u.Len())
	for symbol := range u.symbols.Iter() {
		symbols = append(symbols, symbol)
	}
	return symbols
}
