package ai

import (
	"sync"
	"time"
)

// QuotaBreaker stops outbound AI calls once the provider reports an exhausted quota.
// It is closed until Trip; it reopens only on Reset, or after Cooldown when Cooldown > 0.
type QuotaBreaker struct {
	mu        sync.Mutex
	open      bool
	reason    string
	trippedAt time.Time
	cooldown  time.Duration
	now       func() time.Time
}

// BreakerState is a point-in-time view for health endpoints.
type BreakerState struct {
	Open      bool       `json:"open"`
	Reason    string     `json:"reason,omitempty"`
	TrippedAt *time.Time `json:"tripped_at,omitempty"`
}

func NewQuotaBreaker(cooldown time.Duration) *QuotaBreaker {
	return &QuotaBreaker{cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may go out.
func (b *QuotaBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	return !b.open
}

func (b *QuotaBreaker) Trip(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return
	}
	b.open = true
	b.reason = reason
	b.trippedAt = b.now()
}

func (b *QuotaBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.reason = ""
	b.trippedAt = time.Time{}
}

func (b *QuotaBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	if !b.open {
		return BreakerState{}
	}
	at := b.trippedAt
	return BreakerState{Open: true, Reason: b.reason, TrippedAt: &at}
}

func (b *QuotaBreaker) expireLocked() {
	if b.open && b.cooldown > 0 && b.now().Sub(b.trippedAt) >= b.cooldown {
		b.open = false
		b.reason = ""
	}
}
