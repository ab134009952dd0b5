// Package events fans settings changes out to interested subscribers.
//
// The registry and the resolver publish here whenever activation or a
// selection changes; dependent scopes and the Kafka forwarder subscribe.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Type names a settings change.
type Type string

const (
	ProviderToggled       Type = "provider.toggled"
	ProviderKeyChanged    Type = "provider.key_changed"
	LedgerChanged         Type = "ledger.changed"
	GlobalProviderChanged Type = "selection.global_provider"
	GlobalModelChanged    Type = "selection.global_model"
	ScopeProviderChanged  Type = "selection.scope_provider"
	ScopeModelChanged     Type = "selection.scope_model"
	ScopeReset            Type = "selection.scope_reset"
)

// Event is a single settings change notification.
type Event struct {
	ID       string            `json:"id"`
	Type     Type              `json:"type"`
	Scope    domain.Scope      `json:"scope,omitempty"`
	Provider domain.ProviderID `json:"provider,omitempty"`
	Model    string            `json:"model,omitempty"`
	Active   *bool             `json:"active,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	At       time.Time         `json:"at"`
}

// Publisher is what state owners need to announce changes.
type Publisher interface {
	Publish(e Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}

// Bus is an in-process, non-blocking fan-out. A slow subscriber loses
// events instead of stalling the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	dropped atomic.Int64
	closed  bool
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish stamps the event and delivers it to every subscriber.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			slog.Warn("settings event dropped", slog.String("type", string(e.Type)), slog.String("event_id", e.ID))
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close unsubscribes everyone.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// BoolPtr is a helper for the Active field.
func BoolPtr(v bool) *bool { return &v }
