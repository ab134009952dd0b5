package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/kvtest"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
	"github.com/fairyhunter13/ai-translator/internal/service/registry"
)

type ledgerSpy struct{ cleared []domain.ProviderID }

func (l *ledgerSpy) Clear(_ context.Context, p domain.ProviderID) error {
	l.cleared = append(l.cleared, p)
	return nil
}

func newRegistry(t *testing.T) (*registry.Registry, *kvtest.Flaky, *ledgerSpy, *events.Bus) {
	t.Helper()
	store := kvtest.NewFlaky()
	spy := &ledgerSpy{}
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	r := registry.New(store, spy, bus)
	require.NoError(t, r.Load(context.Background()))
	return r, store, spy, bus
}

func TestToggle_RequiresAPIKey(t *testing.T) {
	ctx := context.Background()
	r, _, _, _ := newRegistry(t)

	for _, p := range domain.AllProviders() {
		t.Run(string(p), func(t *testing.T) {
			err := r.Toggle(ctx, p, true)
			require.ErrorIs(t, err, domain.ErrMissingAPIKey)
			assert.False(t, r.IsActive(p))
		})
	}
}

func TestToggle_ActivateAndUserDisableKeepsLedger(t *testing.T) {
	ctx := context.Background()
	r, store, spy, bus := newRegistry(t)
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	require.NoError(t, r.SetAPIKey(ctx, domain.ProviderGroq, "  gsk-123 "))
	key, ok := r.APIKey(domain.ProviderGroq)
	require.True(t, ok)
	assert.Equal(t, "gsk-123", key)

	require.NoError(t, r.Toggle(ctx, domain.ProviderGroq, true))
	assert.True(t, r.IsActive(domain.ProviderGroq))
	assert.Equal(t, []domain.ProviderID{domain.ProviderGroq}, r.ActiveProviders())

	var stored map[domain.ProviderID]bool
	found, err := domain.LoadJSON(ctx, store, domain.KeyActiveProviders, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, stored[domain.ProviderGroq])

	require.NoError(t, r.Toggle(ctx, domain.ProviderGroq, false))
	assert.False(t, r.IsActive(domain.ProviderGroq))
	assert.Empty(t, spy.cleared)
	assert.True(t, r.HasAPIKey(domain.ProviderGroq))

	var types []events.Type
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Equal(t, []events.Type{events.ProviderKeyChanged, events.ProviderToggled, events.ProviderToggled}, types)
}

func TestToggle_PersistenceFailureLeavesMemory(t *testing.T) {
	ctx := context.Background()
	r, store, _, _ := newRegistry(t)
	require.NoError(t, r.SetAPIKey(ctx, domain.ProviderOpenAI, "sk-1"))

	store.FailWrites(true)
	err := r.Toggle(ctx, domain.ProviderOpenAI, true)
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.False(t, r.IsActive(domain.ProviderOpenAI))

	store.FailWrites(false)
	require.NoError(t, r.Toggle(ctx, domain.ProviderOpenAI, true))
	store.FailWrites(true)
	require.Error(t, r.Toggle(ctx, domain.ProviderOpenAI, false))
	assert.True(t, r.IsActive(domain.ProviderOpenAI))
}

func TestDeactivate_ReasonsAndLedger(t *testing.T) {
	ctx := context.Background()
	r, _, spy, _ := newRegistry(t)
	require.NoError(t, r.SetAPIKey(ctx, domain.ProviderAnthropic, "sk-ant"))
	require.NoError(t, r.Toggle(ctx, domain.ProviderAnthropic, true))

	require.NoError(t, r.Deactivate(ctx, domain.ProviderAnthropic, registry.ReasonCredentialInvalid))
	assert.False(t, r.IsActive(domain.ProviderAnthropic))
	assert.Empty(t, spy.cleared)

	require.NoError(t, r.Deactivate(ctx, domain.ProviderAnthropic, registry.ReasonKeyRemoved))
	assert.Equal(t, []domain.ProviderID{domain.ProviderAnthropic}, spy.cleared)

	require.ErrorIs(t, r.Deactivate(ctx, "mistral", registry.ReasonUserDisabled), domain.ErrInvalidArgument)
}

func TestClearAPIKey_DeactivatesAndClearsLedger(t *testing.T) {
	ctx := context.Background()
	r, store, spy, _ := newRegistry(t)
	require.NoError(t, r.SetAPIKey(ctx, domain.ProviderGoogle, "AIza"))
	require.NoError(t, r.Toggle(ctx, domain.ProviderGoogle, true))

	require.NoError(t, r.ClearAPIKey(ctx, domain.ProviderGoogle))
	assert.False(t, r.IsActive(domain.ProviderGoogle))
	assert.False(t, r.HasAPIKey(domain.ProviderGoogle))
	assert.Equal(t, []domain.ProviderID{domain.ProviderGoogle}, spy.cleared)

	_, found, err := store.Get(ctx, domain.APIKeyKey(domain.ProviderGoogle))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetAPIKey_Validation(t *testing.T) {
	ctx := context.Background()
	r, store, _, _ := newRegistry(t)
	require.ErrorIs(t, r.SetAPIKey(ctx, domain.ProviderGroq, "   "), domain.ErrInvalidArgument)
	require.ErrorIs(t, r.SetAPIKey(ctx, "nope", "k"), domain.ErrInvalidArgument)

	store.FailWrites(true)
	require.ErrorIs(t, r.SetAPIKey(ctx, domain.ProviderGroq, "k"), domain.ErrPersistence)
	assert.False(t, r.HasAPIKey(domain.ProviderGroq))
}

func TestLoad_DropsActivationWithoutKey(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewFlaky()
	require.NoError(t, domain.SaveJSON(ctx, store, domain.KeyActiveProviders, map[domain.ProviderID]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGroq:   true,
	}))
	require.NoError(t, store.Set(ctx, domain.APIKeyKey(domain.ProviderGroq), "gsk"))

	r := registry.New(store, nil, nil)
	require.NoError(t, r.Load(ctx))
	assert.False(t, r.IsActive(domain.ProviderOpenAI))
	assert.True(t, r.IsActive(domain.ProviderGroq))
	snap := r.Snapshot()
	assert.Len(t, snap, len(domain.AllProviders()))
	assert.True(t, snap[domain.ProviderGroq])
}
