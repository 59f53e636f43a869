// Package quota limits free-plan AI usage per user. Premium users bypass the
// limiter entirely.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oceralabs/ocera/internal/domain"
)

// Limiter holds one token bucket per free user, refilled evenly across the
// day. State is in-process; each replica enforces its own share of the quota.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*userBucket
	callsPerDay int
	now         func() time.Time
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleEviction is how long an untouched bucket survives before cleanup.
const idleEviction = 48 * time.Hour

// New creates a Limiter allowing callsPerDay AI requests per free user.
func New(callsPerDay int) *Limiter {
	return &Limiter{
		buckets:     make(map[string]*userBucket),
		callsPerDay: callsPerDay,
		now:         time.Now,
	}
}

// Allow consumes one call from the user's daily budget. Premium users always
// pass. Exhausted budgets return ErrRateLimited.
func (l *Limiter) Allow(_ context.Context, user domain.User) error {
	if user.Premium(l.now()) {
		return nil
	}
	l.mu.Lock()
	b, ok := l.buckets[user.ID]
	if !ok {
		perSecond := rate.Limit(float64(l.callsPerDay) / (24 * 60 * 60))
		b = &userBucket{limiter: rate.NewLimiter(perSecond, l.callsPerDay)}
		l.buckets[user.ID] = b
	}
	b.lastSeen = l.now()
	l.evictIdleLocked()
	l.mu.Unlock()

	if !b.limiter.Allow() {
		return fmt.Errorf("%w: daily AI quota of %d calls exhausted, upgrade for unlimited access",
			domain.ErrRateLimited, l.callsPerDay)
	}
	return nil
}

// evictIdleLocked drops buckets idle past the eviction window. Called with the
// mutex held; cost is proportional to the map, which stays small because
// eviction runs on every miss.
func (l *Limiter) evictIdleLocked() {
	cutoff := l.now().Add(-idleEviction)
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}
