// Package dispatch sends one translation to a provider under the shared
// throttle and the 429 retry policy.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/classify"
	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/provider"
	"github.com/fairyhunter13/ai-translator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

const maxBodyBytes = 4 << 20

// Call is one translation request with everything already resolved.
type Call struct {
	Provider     domain.ProviderID
	Model        string
	APIKey       string
	Text         string
	FromLanguage string
	ToLanguage   string
	MaxTokens    int
}

// Result is a successful provider reply.
type Result struct {
	Text     string
	Raw      json.RawMessage
	Provider domain.ProviderID
	Model    string
	Attempts int
}

// Engine runs calls through Idle, Throttling, Requesting and
// Succeeded/RetryPending/Failed.
type Engine struct {
	strategies  *provider.Set
	client      *http.Client
	gate        *Gate
	retryDelay  time.Duration
	maxRetries  int
	temperature float64
}

// Option customises an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(c *http.Client) Option { return func(e *Engine) { e.client = c } }

// WithTemperature sets the sampling temperature sent to providers.
func WithTemperature(t float64) Option { return func(e *Engine) { e.temperature = t } }

// New builds an engine from the dispatch policy.
func New(strategies *provider.Set, cfg config.DispatchConfig, opts ...Option) *Engine {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("Translate %s %s", r.Method, r.URL.Host)
		}),
	)
	e := &Engine{
		strategies:  strategies,
		client:      &http.Client{Timeout: cfg.HTTPTimeout, Transport: transport},
		gate:        NewGate(cfg.RateLimitDelay),
		retryDelay:  cfg.RetryDelay,
		maxRetries:  cfg.MaxRetries,
		temperature: 0.3,
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// errRetryable marks a 429 attempt for the backoff loop.
type errRetryable struct{ failure provider.Failure }

func (e *errRetryable) Error() string { return fmt.Sprintf("rate limited (status %d)", e.failure.Status) }

// Dispatch sends the call. Failures come back as *domain.ProviderError, except
// ErrTranslationInProgress when another call holds the gate.
func (e *Engine) Dispatch(ctx context.Context, call Call) (Result, error) {
	lg := observability.LoggerFromContext(ctx).With(
		slog.String("provider", string(call.Provider)),
		slog.String("model", call.Model),
	)
	st, err := e.strategies.Get(call.Provider)
	if err != nil {
		return Result{}, err
	}
	system, err := provider.SystemPrompt(call.FromLanguage, call.ToLanguage)
	if err != nil {
		return Result{}, fmt.Errorf("op=dispatch.prompt: %w", err)
	}
	req := provider.Request{
		Model:       call.Model,
		APIKey:      call.APIKey,
		System:      system,
		User:        call.Text,
		MaxTokens:   call.MaxTokens,
		Temperature: e.temperature,
	}

	release, waited, err := e.gate.Acquire(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrTranslationInProgress) {
			observability.RecordRejected()
			lg.Warn("translation rejected, another one in flight")
			return Result{}, err
		}
		return Result{}, e.networkError(call, 0, err)
	}
	defer release()
	observability.ObserveThrottleWait(waited)
	if waited > 0 {
		lg.Debug("dispatch throttled", slog.Duration("waited", waited))
	}

	var (
		attempts int
		out      Result
	)
	op := func() error {
		attempts++
		hr, err := st.BuildRequest(ctx, req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("op=dispatch.build: %w", err))
		}
		start := time.Now()
		resp, err := e.client.Do(hr)
		if err != nil {
			observability.ObserveProviderCall(string(call.Provider), 0, time.Since(start))
			lg.Error("provider transport error", slog.Int("attempt", attempts), slog.Any("error", err))
			return backoff.Permanent(e.networkError(call, attempts, err))
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		observability.ObserveProviderCall(string(call.Provider), resp.StatusCode, time.Since(start))
		if err != nil {
			return backoff.Permanent(e.networkError(call, attempts, err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lg.Warn("provider rate limited", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempts))
			return &errRetryable{failure: st.ParseError(resp.StatusCode, body)}
		case resp.StatusCode != http.StatusOK:
			f := st.ParseError(resp.StatusCode, body)
			cls := classify.FromFailure(f)
			lg.Warn("provider error", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempts),
				slog.String("category", string(cls.Category)), slog.String("message", f.Message))
			return backoff.Permanent(&domain.ProviderError{
				Provider:       call.Provider,
				Model:          call.Model,
				Status:         resp.StatusCode,
				Message:        f.Message,
				Raw:            body,
				Category:       cls.Category,
				Classification: cls,
				Attempts:       attempts,
			})
		}

		text, err := st.ParseText(body)
		if err != nil {
			lg.Error("provider response unparseable", slog.Int("attempt", attempts), slog.Any("error", err))
			return backoff.Permanent(&domain.ProviderError{
				Provider:       call.Provider,
				Model:          call.Model,
				Status:         resp.StatusCode,
				Message:        "unparseable provider response: " + err.Error(),
				Raw:            body,
				Category:       domain.CategoryUnknown,
				Classification: domain.Classification{Category: domain.CategoryUnknown},
				Attempts:       attempts,
				Err:            err,
			})
		}
		out = Result{Text: text, Provider: call.Provider, Model: call.Model}
		if json.Valid(body) {
			out.Raw = body
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{step: e.retryDelay}, uint64(e.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		observability.RecordRetry(string(call.Provider))
		lg.Info("retrying after rate limit", slog.Int("attempt", attempts), slog.Duration("wait", wait))
	}
	err = backoff.RetryNotify(op, bo, notify)
	if err == nil {
		out.Attempts = attempts
		lg.Info("translation dispatched", slog.Int("attempts", attempts))
		return out, nil
	}

	var rl *errRetryable
	if errors.As(err, &rl) {
		cls := classify.FromFailure(rl.failure)
		cls.Category = domain.CategoryRateLimited
		lg.Error("rate limit retries exhausted", slog.Int("attempts", attempts))
		return Result{}, &domain.ProviderError{
			Provider:       call.Provider,
			Model:          call.Model,
			Status:         http.StatusTooManyRequests,
			Message:        rl.failure.Message,
			Category:       domain.CategoryRateLimited,
			Classification: cls,
			Attempts:       attempts,
		}
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return Result{}, pe
	}
	if ctx.Err() != nil {
		return Result{}, e.networkError(call, attempts, ctx.Err())
	}
	return Result{}, err
}

func (e *Engine) networkError(call Call, attempts int, err error) *domain.ProviderError {
	return &domain.ProviderError{
		Provider:       call.Provider,
		Model:          call.Model,
		Message:        err.Error(),
		Category:       domain.CategoryNetworkFailure,
		Classification: domain.Classification{Category: domain.CategoryNetworkFailure},
		Attempts:       attempts,
		Err:            err,
	}
}
