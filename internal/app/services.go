package app

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/catalog"
	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/provider"
	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/dispatch"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
	"github.com/fairyhunter13/ai-translator/internal/service/ledger"
	"github.com/fairyhunter13/ai-translator/internal/service/registry"
	"github.com/fairyhunter13/ai-translator/internal/service/resolver"
	"github.com/fairyhunter13/ai-translator/internal/usecase"
)

// Services is the assembled domain core shared by the server and the CLI.
type Services struct {
	Registry   *registry.Registry
	Ledger     *ledger.Ledger
	Resolver   *resolver.Resolver
	Engine     *dispatch.Engine
	Translator *usecase.TranslatorService
	Catalog    usecase.CatalogService
}

// BuildServices wires the core over store, loads persisted state and
// publishes changes on pub.
func BuildServices(ctx context.Context, cfg config.Config, store domain.KVStore, pub events.Publisher) (*Services, error) {
	strategies, err := provider.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("op=app.build: %w", err)
	}
	led := ledger.New(store, cfg.DefaultModel, pub)
	if err := led.Load(ctx); err != nil {
		return nil, fmt.Errorf("op=app.build: %w", err)
	}
	reg := registry.New(store, led, pub)
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("op=app.build: %w", err)
	}
	res := resolver.New(store, reg, led, pub)
	dc := cfg.GetDispatchConfig()
	engine := dispatch.New(strategies, dc, dispatch.WithTemperature(cfg.Temperature))
	tr := usecase.NewTranslatorService(reg, led, res, engine, tokencount.NewCounter(), cfg.TranslationMaxTokens)
	tr.DefaultModel = cfg.DefaultModel
	lister := catalog.NewCache(catalog.New(cfg, strategies, dc.HTTPTimeout), cfg.ModelListCacheTTL, 64)
	return &Services{
		Registry:   reg,
		Ledger:     led,
		Resolver:   res,
		Engine:     engine,
		Translator: tr,
		Catalog:    usecase.NewCatalogService(lister, reg, led),
	}, nil
}
