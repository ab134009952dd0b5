// Package kvtest holds store doubles shared by service tests.
package kvtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/memory"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// ErrInjected is returned by a Flaky store while failures are switched on.
var ErrInjected = errors.New("injected store failure")

// Flaky wraps an in-memory store and can be told to fail writes.
type Flaky struct {
	*memory.Store
	mu         sync.Mutex
	failWrites bool
	writes     int
}

// NewFlaky returns a healthy store.
func NewFlaky() *Flaky { return &Flaky{Store: memory.New()} }

// FailWrites toggles write failures.
func (f *Flaky) FailWrites(on bool) {
	f.mu.Lock()
	f.failWrites = on
	f.mu.Unlock()
}

// Writes counts successful Set and Remove calls.
func (f *Flaky) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *Flaky) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("op=kvtest.%s: %w: %w", op, domain.ErrPersistence, ErrInjected)
	}
	f.writes++
	return nil
}

// Set fails when writes are disabled.
func (f *Flaky) Set(ctx domain.Context, key, value string) error {
	if err := f.check("set"); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value)
}

// Remove fails when writes are disabled.
func (f *Flaky) Remove(ctx domain.Context, key string) error {
	if err := f.check("remove"); err != nil {
		return err
	}
	return f.Store.Remove(ctx, key)
}
