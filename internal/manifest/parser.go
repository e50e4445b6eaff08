package manifest

import (
	"context"
	"log/slog"

	"github.com/justchokingaround/watchengine/internal/cache"
	providerhttp "github.com/justchokingaround/watchengine/internal/providers/http"
)

// Parser fetches master playlists and produces quality ladders.
// It never returns an error: any failure degrades to Fallback.
type Parser struct {
	client *providerhttp.Client
	cache  *cache.Cache[string, []QualityVariant]
	logger *slog.Logger
}

// NewParser creates a parser backed by client, memoizing up to cacheSize ladders
func NewParser(client *providerhttp.Client, cacheSize int, logger *slog.Logger) *Parser {
	if client == nil {
		client = providerhttp.NewClient(providerhttp.DefaultClientConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		client: client,
		cache:  cache.New[string, []QualityVariant](cacheSize),
		logger: logger,
	}
}

// Qualities returns the sorted ladder for manifestURL
func (p *Parser) Qualities(ctx context.Context, manifestURL string, headers map[string]string) []QualityVariant {
	if cached, ok := p.cache.Get(manifestURL); ok {
		return append([]QualityVariant(nil), cached...)
	}

	body, err := p.client.GetText(ctx, manifestURL, headers)
	if err != nil {
		p.logger.Debug("manifest fetch failed, using auto only", "url", manifestURL, "error", err)
		return Fallback(manifestURL)
	}

	variants, err := ParseVariants(body, manifestURL)
	if err != nil {
		p.logger.Debug("manifest parse failed, using auto only", "url", manifestURL, "error", err)
		return Fallback(manifestURL)
	}

	SortVariants(variants)
	p.cache.Set(manifestURL, variants)

	return append([]QualityVariant(nil), variants...)
}
