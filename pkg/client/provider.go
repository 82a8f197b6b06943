package client

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

// Provider fetches one temperature observation for a query.
type Provider interface {
	ID() models.ProviderID
	Fetch(ctx context.Context, q models.Query) (models.Observation, error)
}

// Extractor captures everything that differs between providers: how the
// request is shaped and where the temperature lives in the reply.
type Extractor interface {
	BuildRequest(cfg models.ProviderConfig, q models.Query) (endpoint string, params url.Values)
	Extract(body []byte, q models.Query) (float64, error)
}

// Adapter runs an Extractor over a BaseClient.
type Adapter struct {
	*BaseClient
	id        models.ProviderID
	config    models.ProviderConfig
	extractor Extractor
}

var _ Provider = (*Adapter)(nil)

func NewAdapter(id models.ProviderID, cfg models.ProviderConfig, extractor Extractor, clientConfig ClientConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		BaseClient: NewBaseClient(string(id), clientConfig, logger),
		id:         id,
		config:     cfg,
		extractor:  extractor,
	}
}

func (a *Adapter) ID() models.ProviderID {
	return a.id
}

func (a *Adapter) Fetch(ctx context.Context, q models.Query) (models.Observation, error) {
	if a.config.Endpoint == "" || a.config.Credential == "" {
		return models.Observation{}, &ProviderError{Provider: a.id, Kind: ErrNotConfigured, Err: ErrNotConfigured}
	}

	endpoint, params := a.extractor.BuildRequest(a.config, q)

	resp, err := a.Get(ctx, endpoint, params)
	if err != nil {
		return models.Observation{}, transportError(a.id, err)
	}

	temp, err := a.extractor.Extract(resp.Body, q)
	if err != nil {
		return models.Observation{}, schemaError(a.id, "%w", err)
	}

	return models.Observation{
		Provider:     a.id,
		TemperatureC: temp,
		ObservedAt:   time.Now().UTC(),
	}, nil
}
