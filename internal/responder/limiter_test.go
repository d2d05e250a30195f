package responder

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_NilWhenDisabled(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerPeer: 0})
	if l != nil {
		t.Fatal("expected nil when MaxPerPeer = 0")
	}
	if !l.Allow([4]byte{1, 2, 3, 4}, time.Now()) {
		t.Error("nil limiter must allow")
	}
	if l.Rejected() != 0 || l.ActivePeers() != 0 {
		t.Error("nil limiter must report zero")
	}
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerPeer: 3, Window: 10 * time.Second})

	peer := [4]byte{10, 0, 0, 1}
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !l.Allow(peer, now) {
			t.Fatalf("response %d should be allowed", i)
		}
	}
	if l.Allow(peer, now) {
		t.Error("4th response should be rejected")
	}
	if l.Rejected() != 1 {
		t.Errorf("expected 1 rejected, got %d", l.Rejected())
	}
}

func TestLimiter_PeersIndependent(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerPeer: 1, Window: 10 * time.Second})
	now := time.Now()

	l.Allow([4]byte{1, 1, 1, 1}, now)
	if l.Allow([4]byte{1, 1, 1, 1}, now) {
		t.Error("second response to the same peer should be rejected")
	}
	if !l.Allow([4]byte{2, 2, 2, 2}, now) {
		t.Error("other peer should be allowed")
	}
	if got := l.ActivePeers(); got != 2 {
		t.Errorf("expected 2 active peers, got %d", got)
	}
}

func TestLimiter_WindowRotation(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerPeer: 2, Window: time.Second})
	peer := [4]byte{10, 0, 0, 1}
	now := time.Now()

	l.Allow(peer, now)
	l.Allow(peer, now)
	if l.Allow(peer, now) {
		t.Error("should be rejected before window rotation")
	}
	if !l.Allow(peer, now.Add(2*time.Second)) {
		t.Error("should be allowed after window rotation")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerPeer: 100, Window: time.Minute})
	peer := [4]byte{10, 0, 0, 9}
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if l.Allow(peer, now) {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("expected exactly 100 allowed, got %d", allowed)
	}
	if l.Rejected() != 300 {
		t.Errorf("expected 300 rejected, got %d", l.Rejected())
	}
}
