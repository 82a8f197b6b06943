package client

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

// extractors is the fixed per-provider response knowledge.
var extractors = map[models.ProviderID]Extractor{
	models.OpenWeatherMap: OpenWeatherMapExtractor{},
	models.WeatherStack:   WeatherStackExtractor{},
	models.TomorrowIO:     TomorrowIOExtractor{},
	models.VisualCrossing: VisualCrossingExtractor{},
	models.AccuWeather:    AccuWeatherExtractor{},
}

// DefaultEndpoints are the public API URLs for each provider.
var DefaultEndpoints = map[models.ProviderID]string{
	models.OpenWeatherMap: OpenWeatherMapURL,
	models.WeatherStack:   WeatherStackURL,
	models.TomorrowIO:     TomorrowIOURL,
	models.VisualCrossing: VisualCrossingURL,
	models.AccuWeather:    AccuWeatherURL,
}

type registryEntry struct {
	config    models.ProviderConfig
	extractor Extractor
}

// Registry is the immutable provider lookup built at startup.
type Registry struct {
	entries map[models.ProviderID]registryEntry
	order   []models.ProviderID
}

func NewRegistry(configs map[models.ProviderID]models.ProviderConfig) (*Registry, error) {
	r := &Registry{entries: make(map[models.ProviderID]registryEntry, len(configs))}

	for id := range configs {
		if _, ok := extractors[id]; !ok {
			return nil, fmt.Errorf("no extractor for provider %q", id)
		}
	}

	for _, id := range models.AllProviders {
		cfg, ok := configs[id]
		if !ok {
			continue
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = DefaultEndpoints[id]
		}
		r.entries[id] = registryEntry{config: cfg, extractor: extractors[id]}
		r.order = append(r.order, id)
	}

	return r, nil
}

// Lookup returns the resolved configuration and extractor for id.
func (r *Registry) Lookup(id models.ProviderID) (models.ProviderConfig, Extractor, bool) {
	entry, ok := r.entries[id]
	return entry.config, entry.extractor, ok
}

// IDs returns the registered providers in display order.
func (r *Registry) IDs() []models.ProviderID {
	out := make([]models.ProviderID, len(r.order))
	copy(out, r.order)
	return out
}

// Providers builds one adapter per registered provider that has a credential.
func (r *Registry) Providers(clientConfig ClientConfig, logger *zap.Logger) []Provider {
	var providers []Provider
	for _, id := range r.order {
		cfg, extractor, _ := r.Lookup(id)
		if cfg.Credential == "" {
			logger.Warn("Provider has no credential, skipping", zap.String("provider", string(id)))
			continue
		}
		providers = append(providers, NewAdapter(id, cfg, extractor, clientConfig, logger))
		logger.Info("Provider client initialized", zap.String("provider", string(id)))
	}
	return providers
}
