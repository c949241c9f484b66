package scan

import (
	"sync"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// SymbolSet is the mutable, deduplicated symbol list behind the scan loop
// and the manual-entry catalog check. Symbols are held in canonical
// BASE/QUOTE form; entries that do not normalize are dropped.
type SymbolSet struct {
	mu      sync.Mutex
	order   []string
	present map[string]bool
}

// NewSymbolSet creates a SymbolSet seeded with the given symbols.
func NewSymbolSet(symbols ...string) *SymbolSet {
	s := &SymbolSet{present: make(map[string]bool)}
	s.Replace(symbols)
	return s
}

// Replace swaps the whole set for the given symbols, preserving their order.
func (s *SymbolSet) Replace(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.present = make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		sym := domain.NormalizeSymbol(raw)
		if sym == "" || s.present[sym] {
			continue
		}
		s.present[sym] = true
		s.order = append(s.order, sym)
	}
}

// List returns a copy of the current symbols in insertion order.
func (s *SymbolSet) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Contains reports whether the canonical form of symbol is in the set.
func (s *SymbolSet) Contains(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present[domain.NormalizeSymbol(symbol)]
}

// Len returns the number of symbols in the set.
func (s *SymbolSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
