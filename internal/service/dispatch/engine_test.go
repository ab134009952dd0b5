package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/provider"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

const okOpenAI = `{"choices":[{"message":{"role":"assistant","content":"Hola mundo"}}]}`

func newEngine(t *testing.T, srv *httptest.Server, dc config.DispatchConfig) *Engine {
	t.Helper()
	cfg := config.Config{
		OpenAIBaseURL:     srv.URL,
		GoogleBaseURL:     srv.URL,
		AnthropicBaseURL:  srv.URL,
		OpenRouterBaseURL: srv.URL,
		GroqBaseURL:       srv.URL,
	}
	set, err := provider.FromConfig(cfg)
	require.NoError(t, err)
	if dc.HTTPTimeout == 0 {
		dc.HTTPTimeout = 5 * time.Second
	}
	return New(set, dc, WithHTTPClient(srv.Client()))
}

func fastPolicy() config.DispatchConfig {
	return config.DispatchConfig{RateLimitDelay: 0, RetryDelay: 5 * time.Millisecond, MaxRetries: 3}
}

func call(p domain.ProviderID) Call {
	return Call{Provider: p, Model: "m", APIKey: "k", Text: "Hello world", FromLanguage: "English", ToLanguage: "Spanish", MaxTokens: 1000}
}

func TestDispatch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, okOpenAI)
	}))
	defer srv.Close()

	res, err := newEngine(t, srv, fastPolicy()).Dispatch(context.Background(), call(domain.ProviderOpenAI))
	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", res.Text)
	assert.Equal(t, 1, res.Attempts)
	assert.JSONEq(t, okOpenAI, string(res.Raw))
}

func TestDispatch_VendorShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/messages":
			assert.Equal(t, "k", r.Header.Get("x-api-key"))
			_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"Hallo Welt"}]}`)
		case r.URL.Query().Get("key") == "k":
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Bonjour"}]}}]}`)
		default:
			_, _ = io.WriteString(w, okOpenAI)
		}
	}))
	defer srv.Close()
	e := newEngine(t, srv, fastPolicy())

	want := map[domain.ProviderID]string{
		domain.ProviderAnthropic:  "Hallo Welt",
		domain.ProviderGoogle:     "Bonjour",
		domain.ProviderGroq:       "Hola mundo",
		domain.ProviderOpenRouter: "Hola mundo",
	}
	for p, text := range want {
		res, err := e.Dispatch(context.Background(), call(p))
		require.NoError(t, err, "provider %s", p)
		assert.Equal(t, text, res.Text)
	}
}

func TestDispatch_RateLimitedExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	_, err := newEngine(t, srv, fastPolicy()).Dispatch(context.Background(), call(domain.ProviderOpenAI))
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Attempts)
	assert.Equal(t, domain.CategoryRateLimited, pe.Category)
	assert.True(t, pe.Classification.IsUsageLimited)
}

func TestDispatch_RetryThenSucceedWithLinearDelay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, okOpenAI)
	}))
	defer srv.Close()

	policy := fastPolicy()
	policy.RetryDelay = 20 * time.Millisecond
	start := time.Now()
	res, err := newEngine(t, srv, policy).Dispatch(context.Background(), call(domain.ProviderGroq))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	// 1x + 2x the retry delay
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestDispatch_ThrottleSpacesCalls(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		_, _ = io.WriteString(w, okOpenAI)
	}))
	defer srv.Close()

	policy := fastPolicy()
	policy.RateLimitDelay = 150 * time.Millisecond
	e := newEngine(t, srv, policy)
	for _, p := range []domain.ProviderID{domain.ProviderOpenAI, domain.ProviderGroq, domain.ProviderOpenRouter} {
		_, err := e.Dispatch(context.Background(), call(p))
		require.NoError(t, err)
	}
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 140*time.Millisecond, "call %d fired too early", i)
	}
}

func TestDispatch_RejectsConcurrentCall(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-unblock
		_, _ = io.WriteString(w, okOpenAI)
	}))
	defer srv.Close()
	e := newEngine(t, srv, fastPolicy())

	done := make(chan error, 1)
	go func() {
		_, err := e.Dispatch(context.Background(), call(domain.ProviderOpenAI))
		done <- err
	}()
	<-entered

	_, err := e.Dispatch(context.Background(), call(domain.ProviderOpenAI))
	require.ErrorIs(t, err, domain.ErrTranslationInProgress)

	close(unblock)
	require.NoError(t, <-done)
}

func TestDispatch_PermanentFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category domain.Category
		sentinel error
	}{
		{"credential", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, domain.CategoryCredentialInvalid, domain.ErrCredentialInvalid},
		{"usage", 402, `{"error":{"code":402,"message":"Insufficient credits"}}`, domain.CategoryUsageLimited, domain.ErrUsageLimited},
		{"unknown", 500, `boom`, domain.CategoryUnknown, domain.ErrUnknownProvider},
		{"unparseable success", 200, `{"choices":[]}`, domain.CategoryUnknown, domain.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newEngine(t, srv, fastPolicy()).Dispatch(context.Background(), call(domain.ProviderOpenRouter))
			require.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.category, domain.CategoryOf(err))
			assert.Equal(t, int32(1), calls.Load())

			var pe *domain.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.body, string(pe.Raw))
		})
	}
}

func TestDispatch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	e := newEngine(t, srv, fastPolicy())
	srv.Close()

	_, err := e.Dispatch(context.Background(), call(domain.ProviderOpenAI))
	require.ErrorIs(t, err, domain.ErrNetworkFailure)
	assert.Equal(t, domain.CategoryNetworkFailure, domain.CategoryOf(err))
}

func TestDispatch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, okOpenAI)
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, srv, fastPolicy()).Dispatch(ctx, call(domain.ProviderOpenAI))
	require.ErrorIs(t, err, domain.ErrNetworkFailure)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDispatch_UnknownProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()
	_, err := newEngine(t, srv, fastPolicy()).Dispatch(context.Background(), call("mistral"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDispatch_EmptyTextIsUnknownFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":""}}]}`)
	}))
	defer srv.Close()

	_, err := newEngine(t, srv, fastPolicy()).Dispatch(context.Background(), call(domain.ProviderOpenAI))
	require.ErrorIs(t, err, domain.ErrUnknownProvider)
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.CategoryUnknown, pe.Category)
	assert.Equal(t, int32(1), hits.Load())
}
