package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobby-s-dev/weather-consensus/internal/events"
	"github.com/bobby-s-dev/weather-consensus/internal/models"
	"github.com/bobby-s-dev/weather-consensus/internal/weights"
	"github.com/bobby-s-dev/weather-consensus/pkg/client"
)

const tracerName = "github.com/bobby-s-dev/weather-consensus/internal/services"

// DefaultProviderTimeout bounds each provider call when no timeout is configured.
const DefaultProviderTimeout = 5 * time.Second

type FailureReporter interface {
	Report(event events.FailureEvent)
}

type HistoryWriter interface {
	Save(ctx context.Context, result *models.PredictionResult) error
}

type Aggregator struct {
	providers []client.Provider
	weights   weights.Table
	timeout   time.Duration
	cache     *PredictionCache
	reporter  FailureReporter
	history   HistoryWriter
	logger    *zap.Logger
	tracer    trace.Tracer

	mu             sync.RWMutex
	lastFetchTime  time.Time
	queryCount     int
	successCount   int
	failureCount   int
	emptyCount     int
	failuresByKind map[models.FailureKind]int
}

type Option func(*Aggregator)

func WithCache(cache *PredictionCache) Option {
	return func(a *Aggregator) { a.cache = cache }
}

func WithReporter(reporter FailureReporter) Option {
	return func(a *Aggregator) { a.reporter = reporter }
}

func WithHistory(history HistoryWriter) Option {
	return func(a *Aggregator) { a.history = history }
}

// WithProviderTimeout sets the deadline applied to each provider call.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

func NewAggregator(providers []client.Provider, table weights.Table, logger *zap.Logger, opts ...Option) (*Aggregator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no weather providers configured")
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weight table: %w", err)
	}

	a := &Aggregator{
		providers:      providers,
		weights:        table.Clone(),
		timeout:        DefaultProviderTimeout,
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
		failuresByKind: make(map[models.FailureKind]int),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.reporter == nil {
		a.reporter = events.NewReporter(nil, logger)
	}

	if missing := a.weights.Missing(); len(missing) > 0 {
		ids := make([]string, len(missing))
		for i, id := range missing {
			ids[i] = string(id)
		}
		logger.Warn("Providers without a configured weight use the default",
			zap.Strings("providers", ids),
			zap.Float64("default_weight", weights.DefaultWeight))
	}

	return a, nil
}

// Aggregate queries every provider concurrently and combines the successes
// with table. It never fails: provider errors become result failures. The
// caller's cancellation does not stop calls already in flight; each call is
// bounded by the provider timeout instead.
func (a *Aggregator) Aggregate(ctx context.Context, q models.Query, table weights.Table) *models.PredictionResult {
	ctx = context.WithoutCancel(ctx)
	ctx, span := a.tracer.Start(ctx, "Aggregate", trace.WithAttributes(
		attribute.String("location", q.Location),
		attribute.String("date", q.DateString()),
		attribute.Int("providers", len(a.providers)),
	))
	defer span.End()

	startTime := time.Now()
	result := &models.PredictionResult{
		ID:          uuid.NewString(),
		Location:    q.Location,
		Date:        q.DateString(),
		Predictions: make(models.PredictionSet, len(a.providers)),
		Weights:     make(map[models.ProviderID]float64),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range a.providers {
		g.Go(func() error {
			obs, err := a.fetch(ctx, p, q)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failures = append(result.Failures, models.ProviderFailure{
					Provider: p.ID(),
					Kind:     client.FailureKind(err),
					Message:  err.Error(),
				})
				return nil
			}
			if _, exists := result.Predictions[p.ID()]; !exists {
				result.Predictions[p.ID()] = obs.TemperatureC
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(result.Failures, func(x, y models.ProviderFailure) int {
		return displayIndex(x.Provider) - displayIndex(y.Provider)
	})

	for _, f := range result.Failures {
		a.reporter.Report(events.FailureEvent{
			QueryID:  result.ID,
			Provider: f.Provider,
			Kind:     f.Kind,
			Message:  f.Message,
			Location: result.Location,
			Date:     result.Date,
		})
	}

	for id := range result.Predictions {
		result.Weights[id] = table.Weight(id)
	}

	if combined, ok := Combine(result.Predictions, table); ok {
		result.Combined = &combined
		span.SetAttributes(attribute.Float64("combined", combined))
	} else {
		result.Message = models.NoPredictionMessage
		span.SetStatus(codes.Error, models.NoPredictionMessage)
	}
	result.GeneratedAt = time.Now().UTC()

	a.logger.Info("Aggregation completed",
		zap.String("id", result.ID),
		zap.String("location", result.Location),
		zap.String("date", result.Date),
		zap.Int("success", len(result.Predictions)),
		zap.Int("failure", len(result.Failures)),
		zap.Stringers("sources", result.Sources()),
		zap.Duration("duration", time.Since(startTime)))

	return result
}

func (a *Aggregator) fetch(ctx context.Context, p client.Provider, q models.Query) (obs models.Observation, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := a.tracer.Start(ctx, "provider.fetch",
		trace.WithAttributes(attribute.String("provider", string(p.ID()))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: provider panicked: %v", p.ID(), r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(client.FailureKind(err)))
		}
	}()

	obs, err = p.Fetch(ctx, q)
	if err != nil {
		return models.Observation{}, err
	}
	span.SetAttributes(attribute.Float64("temperature_c", obs.TemperatureC))
	return obs, nil
}

// Predict serves q with the configured weights, using the cache when present.
// Fresh results are recorded in history.
func (a *Aggregator) Predict(ctx context.Context, q models.Query) *models.PredictionResult {
	key := q.Key()
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			a.logger.Debug("Cache hit for prediction", zap.String("key", key))
			return cached
		}
		a.logger.Debug("Cache miss for prediction, fetching fresh data", zap.String("key", key))
	}

	return a.refresh(ctx, q)
}

func (a *Aggregator) refresh(ctx context.Context, q models.Query) *models.PredictionResult {
	result := a.Aggregate(ctx, q, a.weights)
	a.record(result)

	if a.cache != nil {
		a.cache.Set(q.Key(), result)
	}

	if a.history != nil {
		if err := a.history.Save(context.WithoutCancel(ctx), result); err != nil {
			a.logger.Error("Failed to store prediction",
				zap.String("id", result.ID),
				zap.Error(err))
		}
	}

	return result
}

func (a *Aggregator) record(result *models.PredictionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastFetchTime = result.GeneratedAt
	a.queryCount++
	a.successCount += len(result.Predictions)
	a.failureCount += len(result.Failures)
	for _, f := range result.Failures {
		a.failuresByKind[f.Kind]++
	}
	if !result.HasCombined() {
		a.emptyCount++
	}
}

// Warm refreshes the cached prediction for each location on date. It returns
// an error naming the locations that produced no prediction.
func (a *Aggregator) Warm(ctx context.Context, locations []string, date time.Time) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(4)

	startTime := time.Now()
	for _, location := range locations {
		g.Go(func() error {
			q, err := models.NewQuery(location, date.Format(models.DateLayout))
			if err == nil && !a.refresh(ctx, q).HasCombined() {
				err = errors.New(models.NoPredictionMessage)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", location, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Info("Prediction warm-up completed",
		zap.Int("locations", len(locations)),
		zap.Int("failed", len(errs)),
		zap.Duration("duration", time.Since(startTime)))

	return errors.Join(errs...)
}

// Weights returns a copy of the configured weight table.
func (a *Aggregator) Weights() weights.Table {
	return a.weights.Clone()
}

func (a *Aggregator) ProviderIDs() []models.ProviderID {
	ids := make([]models.ProviderID, len(a.providers))
	for i, p := range a.providers {
		ids[i] = p.ID()
	}
	return ids
}

func (a *Aggregator) GetLastFetchTime() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastFetchTime
}

func (a *Aggregator) GetStats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byKind := make(map[string]int, len(a.failuresByKind))
	for kind, n := range a.failuresByKind {
		byKind[string(kind)] = n
	}

	stats := map[string]interface{}{
		"last_fetch_time":  a.lastFetchTime,
		"query_count":      a.queryCount,
		"success_count":    a.successCount,
		"failure_count":    a.failureCount,
		"empty_count":      a.emptyCount,
		"failures_by_kind": byKind,
		"active_providers": len(a.providers),
		"provider_timeout": a.timeout.String(),
	}
	if a.cache != nil {
		stats["cache_stats"] = a.cache.GetStats()
	}
	return stats
}

func (a *Aggregator) Close() {
	if a.cache != nil {
		a.cache.Stop()
	}
}

func displayIndex(id models.ProviderID) int {
	if i := slices.Index(models.AllProviders, id); i >= 0 {
		return i
	}
	return len(models.AllProviders)
}
