package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Gate admits one call at a time and spaces admissions by a fixed interval.
// The limiter owns the last-dispatch timestamp; nothing else reads or writes it.
type Gate struct {
	busy    sync.Mutex
	limiter *rate.Limiter
}

// NewGate spaces calls by interval. A non-positive interval disables spacing.
func NewGate(interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{limiter: rate.NewLimiter(limit, 1)}
}

// Acquire claims the gate and waits for the next dispatch slot. A second
// caller fails immediately with ErrTranslationInProgress instead of queuing.
// The returned release must be called once the call is finished.
func (g *Gate) Acquire(ctx context.Context) (release func(), waited time.Duration, err error) {
	if !g.busy.TryLock() {
		return nil, 0, domain.ErrTranslationInProgress
	}
	start := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		g.busy.Unlock()
		return nil, time.Since(start), err
	}
	return g.busy.Unlock, time.Since(start), nil
}
