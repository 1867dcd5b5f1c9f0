package trigger

import (
	"fmt"
	"sync"
	"time"
)

// CooldownState is the per-symbol cooldown phase. A successful trigger moves a
// symbol from Idle to Cooling; expiry is detected lazily on the next read.
type CooldownState int

const (
	CooldownIdle CooldownState = iota
	CooldownCooling
)

func (s CooldownState) String() string {
	if s == CooldownCooling {
		return "COOLING"
	}
	return "IDLE"
}

// Ledger tracks the last trigger per symbol.
// TryAcquire must read, compare and stamp as one atomic step per symbol.
type Ledger interface {
	TryAcquire(symbol string, now time.Time) (acquired bool, remaining time.Duration, err error)
	Remaining(symbol string, now time.Time) (time.Duration, error)
	Active(now time.Time) (int, error)
	Prune(now time.Time) (int, error)
	Window() time.Duration
}

type ledgerEntry struct {
	mu   sync.Mutex
	last time.Time
}

func (e *ledgerEntry) tryStamp(now time.Time, window time.Duration) (bool, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rem := remainingAt(e.last, now, window); rem > 0 {
		return false, rem
	}
	e.last = now
	return true, window
}

func (e *ledgerEntry) remaining(now time.Time, window time.Duration) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return remainingAt(e.last, now, window)
}

func remainingAt(last, now time.Time, window time.Duration) time.Duration {
	if last.IsZero() || window <= 0 {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= window {
		return 0
	}
	if elapsed < 0 {
		return window
	}
	return window - elapsed
}

// MemoryLedger keeps cooldowns in process memory.
// The map lock is held shared during per-symbol work, so different symbols
// proceed in parallel and Prune never races a stamp.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]*ledgerEntry
	window  time.Duration
}

// NewMemoryLedger creates a ledger with a uniform cooldown window. Zero disables cooldowns.
func NewMemoryLedger(window time.Duration) (*MemoryLedger, error) {
	if window < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNegativeCooldown, window)
	}
	return &MemoryLedger{entries: make(map[string]*ledgerEntry), window: window}, nil
}

func (l *MemoryLedger) Window() time.Duration { return l.window }

func (l *MemoryLedger) TryAcquire(symbol string, now time.Time) (bool, time.Duration, error) {
	for {
		l.mu.RLock()
		if e, ok := l.entries[symbol]; ok {
			acquired, rem := e.tryStamp(now, l.window)
			l.mu.RUnlock()
			return acquired, rem, nil
		}
		l.mu.RUnlock()

		l.mu.Lock()
		if _, ok := l.entries[symbol]; !ok {
			l.entries[symbol] = &ledgerEntry{}
		}
		l.mu.Unlock()
	}
}

func (l *MemoryLedger) Remaining(symbol string, now time.Time) (time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[symbol]
	if !ok {
		return 0, nil
	}
	return e.remaining(now, l.window), nil
}

// State reports whether the symbol is still cooling at now.
func (l *MemoryLedger) State(symbol string, now time.Time) CooldownState {
	rem, _ := l.Remaining(symbol, now)
	if rem > 0 {
		return CooldownCooling
	}
	return CooldownIdle
}

func (l *MemoryLedger) Active(now time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries {
		if e.remaining(now, l.window) > 0 {
			n++
		}
	}
	return n, nil
}

// Prune drops entries whose cooldown has expired.
func (l *MemoryLedger) Prune(now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for sym, e := range l.entries {
		if remainingAt(e.last, now, l.window) == 0 {
			delete(l.entries, sym)
			n++
		}
	}
	return n, nil
}
