package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

func testQuery(t *testing.T) models.Query {
	t.Helper()
	q, err := models.NewQuery("Buffalo, NY", "2024-03-05")
	require.NoError(t, err)
	return q
}

func testClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = time.Second
	return cfg
}

func newTestAdapter(t *testing.T, id models.ProviderID, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := models.ProviderConfig{Endpoint: server.URL + "/api", Credential: "secret"}
	return NewAdapter(id, cfg, extractors[id], testClientConfig(), zap.NewNop())
}

func writeBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestOpenWeatherMapFetch(t *testing.T) {
	adapter := newTestAdapter(t, models.OpenWeatherMap, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "Buffalo, NY", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		writeBody(`{"cod":"200","list":[{"main":{"temp":12.5}},{"main":{"temp":99}}]}`)(w, r)
	})

	obs, err := adapter.Fetch(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, models.OpenWeatherMap, obs.Provider)
	assert.Equal(t, 12.5, obs.TemperatureC)
}

func TestWeatherStackFetch(t *testing.T) {
	adapter := newTestAdapter(t, models.WeatherStack, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("access_key"))
		assert.Equal(t, "Buffalo, NY", r.URL.Query().Get("query"))
		writeBody(`{"current":{"temperature":-3}}`)(w, r)
	})

	obs, err := adapter.Fetch(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, -3.0, obs.TemperatureC)
}

func TestWeatherStackAPIErrorIsSchemaFailure(t *testing.T) {
	adapter := newTestAdapter(t, models.WeatherStack,
		writeBody(`{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"bad key"}}`))

	_, err := adapter.Fetch(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "invalid_access_key")
}

func TestTomorrowIOFetchMatchesDate(t *testing.T) {
	adapter := newTestAdapter(t, models.TomorrowIO, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "Buffalo, NY", query.Get("location"))
		assert.Equal(t, "secret", query.Get("apikey"))
		assert.Equal(t, "temperature", query.Get("fields"))
		assert.Equal(t, "1d", query.Get("timesteps"))
		assert.Equal(t, "metric", query.Get("units"))
		writeBody(`{"data":{"timelines":[{"timestep":"1d","intervals":[
			{"startTime":"2024-03-04T11:00:00Z","values":{"temperature":1.5}},
			{"startTime":"2024-03-05T11:00:00Z","values":{"temperature":4.25}},
			{"startTime":"2024-03-06T11:00:00Z","values":{"temperature":8}}
		]}]}}`)(w, r)
	})

	obs, err := adapter.Fetch(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, 4.25, obs.TemperatureC)
}

func TestTomorrowIONoMatchingDate(t *testing.T) {
	adapter := newTestAdapter(t, models.TomorrowIO, writeBody(`{"data":{"timelines":[{"intervals":[
		{"startTime":"2024-04-01T11:00:00Z","values":{"temperature":1.5}}
	]}]}}`))

	_, err := adapter.Fetch(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
	assert.ErrorIs(t, err, ErrNoMatchingInterval)
}

func TestVisualCrossingEmbedsLocationAndDateInPath(t *testing.T) {
	adapter := newTestAdapter(t, models.VisualCrossing, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Buffalo, NY/2024-03-05", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "metric", r.URL.Query().Get("unitGroup"))
		assert.Equal(t, "days", r.URL.Query().Get("include"))
		writeBody(`{"days":[{"datetime":"2024-03-05","temp":6.1}]}`)(w, r)
	})

	obs, err := adapter.Fetch(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, 6.1, obs.TemperatureC)
}

func TestAccuWeatherFetch(t *testing.T) {
	adapter := newTestAdapter(t, models.AccuWeather, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "true", r.URL.Query().Get("metric"))
		writeBody(`{"DailyForecasts":[{"Temperature":{"Maximum":{"Value":9.4,"Unit":"C"},"Minimum":{"Value":1}}}]}`)(w, r)
	})

	obs, err := adapter.Fetch(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, 9.4, obs.TemperatureC)
}

func TestMissingFieldsAreSchemaFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider models.ProviderID
		body     string
	}{
		{name: "openweathermap empty list", provider: models.OpenWeatherMap, body: `{"list":[]}`},
		{name: "openweathermap no temp", provider: models.OpenWeatherMap, body: `{"list":[{"main":{}}]}`},
		{name: "weatherstack no current", provider: models.WeatherStack, body: `{}`},
		{name: "weatherstack null temperature", provider: models.WeatherStack, body: `{"current":{"temperature":null}}`},
		{name: "tomorrowio no data", provider: models.TomorrowIO, body: `{}`},
		{name: "visualcrossing no days", provider: models.VisualCrossing, body: `{"days":[]}`},
		{name: "accuweather no maximum", provider: models.AccuWeather, body: `{"DailyForecasts":[{"Temperature":{}}]}`},
		{name: "malformed json", provider: models.AccuWeather, body: `{"DailyForecasts":`},
		{name: "wrong type", provider: models.VisualCrossing, body: `{"days":[{"temp":"warm"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, tt.provider, writeBody(tt.body))

			_, err := adapter.Fetch(context.Background(), testQuery(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)
			assert.Equal(t, models.FailureSchema, FailureKind(err))
		})
	}
}

func TestNonSuccessStatusIsTransportFailure(t *testing.T) {
	adapter := newTestAdapter(t, models.OpenWeatherMap, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.Fetch(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestTimeoutIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	clientConfig := testClientConfig()
	clientConfig.Timeout = 50 * time.Millisecond
	adapter := NewAdapter(models.AccuWeather,
		models.ProviderConfig{Endpoint: server.URL, Credential: "secret"},
		AccuWeatherExtractor{}, clientConfig, zap.NewNop())

	start := time.Now()
	_, err := adapter.Fetch(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryRecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"days":[{"temp":3}]}`))
	}))
	t.Cleanup(server.Close)

	clientConfig := testClientConfig()
	clientConfig.MaxRetries = 1
	clientConfig.RetryDelay = time.Millisecond
	adapter := NewAdapter(models.VisualCrossing,
		models.ProviderConfig{Endpoint: server.URL, Credential: "secret"},
		VisualCrossingExtractor{}, clientConfig, zap.NewNop())

	obs, err := adapter.Fetch(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, 3.0, obs.TemperatureC)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchWithoutCredential(t *testing.T) {
	adapter := NewAdapter(models.AccuWeather,
		models.ProviderConfig{Endpoint: AccuWeatherURL},
		AccuWeatherExtractor{}, testClientConfig(), zap.NewNop())

	_, err := adapter.Fetch(context.Background(), testQuery(t))
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, models.FailureConfig, FailureKind(err))
}

func TestRegistry(t *testing.T) {
	registry, err := NewRegistry(map[models.ProviderID]models.ProviderConfig{
		models.AccuWeather:    {Credential: "a"},
		models.OpenWeatherMap: {Endpoint: "http://localhost/owm", Credential: "b"},
		models.TomorrowIO:     {},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.ProviderID{models.OpenWeatherMap, models.TomorrowIO, models.AccuWeather}, registry.IDs())

	cfg, extractor, ok := registry.Lookup(models.AccuWeather)
	require.True(t, ok)
	assert.Equal(t, AccuWeatherURL, cfg.Endpoint)
	assert.IsType(t, AccuWeatherExtractor{}, extractor)

	_, _, ok = registry.Lookup(models.WeatherStack)
	assert.False(t, ok)

	providers := registry.Providers(testClientConfig(), zap.NewNop())
	require.Len(t, providers, 2)
	assert.Equal(t, models.OpenWeatherMap, providers[0].ID())
	assert.Equal(t, models.AccuWeather, providers[1].ID())
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	_, err := NewRegistry(map[models.ProviderID]models.ProviderConfig{"OpenMeteo": {}})
	assert.Error(t, err)
}
