package responder

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limiter caps how many responses one peer address can draw per window,
// so a spoofed SYN flood cannot turn the responder into an amplifier.
// Counts live in a fixed window that is discarded when it expires.
type Limiter struct {
	mu           sync.Mutex
	current      map[[4]byte]*atomic.Int64 // peer address -> responses in current window
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int64

	rejected atomic.Int64
}

// LimiterConfig configures per-peer response limiting.
type LimiterConfig struct {
	MaxPerPeer int           // Max responses per peer per window (0 = disabled)
	Window     time.Duration // Window size (default 1s)
}

// NewLimiter creates a limiter. Returns nil if disabled (MaxPerPeer <= 0);
// a nil *Limiter allows everything.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.MaxPerPeer <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	return &Limiter{
		current:      make(map[[4]byte]*atomic.Int64),
		windowStart:  time.Now(),
		windowSize:   cfg.Window,
		maxPerWindow: int64(cfg.MaxPerPeer),
	}
}

// Allow reports whether another response to peer is permitted at now.
func (l *Limiter) Allow(peer [4]byte, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	if now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[[4]byte]*atomic.Int64)
		l.windowStart = now
	}
	counter, exists := l.current[peer]
	if !exists {
		counter = &atomic.Int64{}
		l.current[peer] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.maxPerWindow {
		l.rejected.Add(1)
		return false
	}
	return true
}

// Rejected returns the total number of refused responses.
func (l *Limiter) Rejected() int64 {
	if l == nil {
		return 0
	}
	return l.rejected.Load()
}

// ActivePeers returns the number of distinct peers in the current window.
func (l *Limiter) ActivePeers() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}
