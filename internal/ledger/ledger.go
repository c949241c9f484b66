// Package ledger holds the in-memory reconciled position book. Four sources
// feed it (manual rows, the paper simulator, the live exchange, and scanner
// signals); each source owns a key prefix. Paper and exchange rows are
// reconciled by full snapshot replacement; manual and signal rows are
// client-owned and only ever removed explicitly. Operator stop overrides
// survive every re-sync.
package ledger

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Ledger is the reconciled book. All access goes through the mutex; methods
// return copies so callers never hold references into the internal map.
type Ledger struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	overrides map[string]domain.Override
	manualSeq int
	logger    *slog.Logger
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		positions: make(map[string]domain.Position),
		overrides: make(map[string]domain.Override),
		logger:    logger.With(slog.String("component", "ledger")),
	}
}

// RestoreOverrides seeds the override table, typically from the persistent
// override store at startup.
func (l *Ledger) RestoreOverrides(overrides map[string]domain.Override) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, ov := range overrides {
		if !ov.IsZero() {
			l.overrides[key] = ov
		}
	}
}

// AddManual inserts an operator-entered row and returns its assigned key.
// The symbol is canonicalised and derived fields are computed immediately.
func (l *Ledger) AddManual(p domain.Position) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.manualSeq++
	p.Key = domain.ManualKey(l.manualSeq)
	p.Source = domain.SourceManual
	p.Symbol = domain.NormalizeSymbol(p.Symbol)
	if p.Status == "" {
		p.Status = domain.StatusTaken
	}
	p.UpdatedAt = time.Now().UTC()
	recompute(&p)
	l.positions[p.Key] = p
	return p.Key
}

// Upsert inserts or replaces one entry by key, re-applying any stored stop
// override and recomputing derived fields. Used for the client-owned sources
// (signal rows) whose keys must survive a snapshot that omits them. It
// reports whether the key was new.
func (l *Ledger) Upsert(p domain.Position) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	p.Symbol = domain.NormalizeSymbol(p.Symbol)
	p.UpdatedAt = time.Now().UTC()

	prev, existed := l.positions[p.Key]
	if existed && p.LastPrice <= 0 {
		p.LastPrice = prev.LastPrice
	}
	l.applyOverrideLocked(&p)
	recompute(&p)
	l.positions[p.Key] = p
	return !existed
}

// SyncSource replaces every entry belonging to one source with the given
// set: keys no longer reported are removed, reported keys are upserted, and
// stored stop overrides are re-applied to the fresh rows. Entries owned by
// other sources are untouched. Only the snapshot-backed sources (paper,
// bybit) may be synced this way; manual and signal keys are client-owned and
// go through AddManual/Upsert/Remove instead. It returns the number of added
// and removed keys.
func (l *Ledger) SyncSource(src domain.Source, incoming []domain.Position) (added, removed int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := domain.KeyPrefix(src)
	seen := make(map[string]bool, len(incoming))
	now := time.Now().UTC()

	for _, p := range incoming {
		if !strings.HasPrefix(p.Key, prefix) {
			continue
		}
		seen[p.Key] = true
		p.Source = src
		p.Symbol = domain.NormalizeSymbol(p.Symbol)
		p.UpdatedAt = now

		if prev, ok := l.positions[p.Key]; ok {
			// Keep the freshest known quote if the feed did not carry one.
			if p.LastPrice <= 0 {
				p.LastPrice = prev.LastPrice
			}
		} else {
			added++
		}
		l.applyOverrideLocked(&p)
		recompute(&p)
		l.positions[p.Key] = p
	}

	for key := range l.positions {
		if strings.HasPrefix(key, prefix) && !seen[key] {
			delete(l.positions, key)
			removed++
		}
	}

	return added, removed
}

// ClearSource drops every entry belonging to a source. Used when switching
// between paper and live trading so the retired source's rows disappear at
// once.
func (l *Ledger) ClearSource(src domain.Source) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := domain.KeyPrefix(src)
	n := 0
	for key := range l.positions {
		if strings.HasPrefix(key, prefix) {
			delete(l.positions, key)
			n++
		}
	}
	return n
}

// Get returns a copy of one entry.
func (l *Ledger) Get(key string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[key]
	return p, ok
}

// Remove deletes one entry and returns it. The entry's stop override, if
// any, is removed from the in-memory table as well; callers that persist
// overrides must delete the stored copy themselves.
func (l *Ledger) Remove(key string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[key]
	if !ok {
		return domain.Position{}, false
	}
	delete(l.positions, key)
	delete(l.overrides, key)
	return p, true
}

// SetOverride records operator stop levels for a key and applies them to the
// live entry if present. A zero override clears the stored entry. It returns
// the updated position copy and whether the key exists in the book.
func (l *Ledger) SetOverride(key string, ov domain.Override) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ov.IsZero() {
		delete(l.overrides, key)
	} else {
		l.overrides[key] = ov
	}

	p, ok := l.positions[key]
	if !ok {
		return domain.Position{}, false
	}
	p.StopLoss = ov.StopLoss
	p.TakeProfit = ov.TakeProfit
	p.UpdatedAt = time.Now().UTC()
	l.positions[key] = p
	return p, true
}

// ApplyPrices pushes fresh quotes into every entry trading a quoted symbol
// and recomputes margin and PnL. Non-finite and non-positive quotes are
// ignored. It returns the number of entries touched.
func (l *Ledger) ApplyPrices(prices map[string]float64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	touched := 0
	for key, p := range l.positions {
		price, ok := prices[p.Symbol]
		if !ok || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			continue
		}
		p.LastPrice = price
		p.UpdatedAt = now
		recompute(&p)
		l.positions[key] = p
		touched++
	}
	return touched
}

// Snapshot returns a stable, key-ordered copy of the whole book.
func (l *Ledger) Snapshot() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Symbols returns the distinct canonical symbols currently in the book.
func (l *Ledger) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(l.positions))
	var out []string
	for _, p := range l.positions {
		if p.Symbol == "" || seen[p.Symbol] {
			continue
		}
		seen[p.Symbol] = true
		out = append(out, p.Symbol)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries in the book.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

func (l *Ledger) applyOverrideLocked(p *domain.Position) {
	ov, ok := l.overrides[p.Key]
	if !ok {
		return
	}
	if ov.StopLoss != nil {
		p.StopLoss = ov.StopLoss
	}
	if ov.TakeProfit != nil {
		p.TakeProfit = ov.TakeProfit
	}
}

// recompute resolves margin, return fraction, and PnL. Server-reported
// figures always win; derivation from the current quote is a fallback for
// sources that did not supply them. Manual rows carry notional size directly,
// so their derived margin is size over leverage; venue rows carry base
// quantity, so margin is the quantity's notional over leverage.
func recompute(p *domain.Position) {
	lev := p.Leverage
	if lev < 1 {
		lev = 1
	}

	switch {
	case p.ReportedMargin != nil && *p.ReportedMargin > 0:
		p.Margin = *p.ReportedMargin
	case p.Source == domain.SourceManual:
		p.Margin = p.Size / lev
	case p.LastPrice > 0:
		p.Margin = p.Size * p.LastPrice / lev
	}

	if p.EntryPrice > 0 && p.LastPrice > 0 {
		if p.Side == domain.SideShort {
			p.RetPct = (p.EntryPrice - p.LastPrice) / p.EntryPrice
		} else {
			p.RetPct = (p.LastPrice - p.EntryPrice) / p.EntryPrice
		}
	}

	if p.ReportedPnL != nil {
		p.PnL = *p.ReportedPnL
	} else if p.EntryPrice > 0 && p.LastPrice > 0 {
		p.PnL = domain.DerivedPnL(p.Side, p.EntryPrice, p.LastPrice, p.Size)
	}
}
