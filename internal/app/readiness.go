package app

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/ai-translator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// BuildReadinessChecks returns the store probe and, when events are forwarded,
// the broker probe.
func BuildReadinessChecks(store domain.KVStore, broker domain.Pinger) []httpserver.ReadinessCheck {
	checks := []httpserver.ReadinessCheck{{
		Name: "store",
		Check: func(ctx context.Context) error {
			p, ok := store.(domain.Pinger)
			if !ok {
				return nil
			}
			return p.Ping(ctx)
		},
	}}
	if broker != nil {
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "events",
			Check: func(ctx context.Context) error {
				if err := broker.Ping(ctx); err != nil {
					return fmt.Errorf("kafka: %w", err)
				}
				return nil
			},
		})
	}
	return checks
}
