package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"go.aimuz.me/cliptrans/cache"
	"go.aimuz.me/cliptrans/config"
	"go.aimuz.me/cliptrans/internal/types"
	"go.aimuz.me/cliptrans/translate"
)

// backend is the orchestrator's Translator. It holds the translate.Client
// built from the latest saved settings; Apply swaps it so sessions started
// afterwards use the new backend.
type backend struct {
	cache     *cache.Cache
	http      *http.Client
	googleURL string

	client atomic.Pointer[translate.Client]
}

func newBackend(c *cache.Cache, httpClient *http.Client) *backend {
	return &backend{cache: c, http: httpClient}
}

// Apply rebuilds the client for s.
func (b *backend) Apply(s config.Settings) {
	var svc translate.Service
	switch s.Backend {
	case config.BackendOpenAI:
		svc = translate.NewOpenAI(s.OpenAI.APIKey, s.OpenAI.BaseURL, s.OpenAI.Model)
	default:
		svc = translate.NewGoogle(b.http, b.googleURL)
	}

	c := b.cache
	if !s.CacheEnabled {
		c = nil
	}
	b.client.Store(translate.NewClient(svc, c, translate.Options{ChineseVariant: s.ChineseVariant}))
	slog.Info("translation backend ready", "backend", svc.Name(), "variant", s.ChineseVariant, "cache", c != nil)
}

func (b *backend) Translate(ctx context.Context, req types.TranslateRequest) (string, error) {
	return b.client.Load().Translate(ctx, req)
}
