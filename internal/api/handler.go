package api

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/events"
	"github.com/bobby-s-dev/weather-consensus/internal/models"
	"github.com/bobby-s-dev/weather-consensus/internal/weights"
)

// Predictor is the part of services.Aggregator the handlers use.
type Predictor interface {
	Predict(ctx context.Context, q models.Query) *models.PredictionResult
	Weights() weights.Table
	ProviderIDs() []models.ProviderID
	GetStats() map[string]interface{}
	GetLastFetchTime() time.Time
}

type HistoryReader interface {
	Recent(ctx context.Context, location string, limit int) ([]*models.PredictionResult, error)
}

type FailureLister interface {
	List() []events.FailureEvent
}

type StatusReporter interface {
	GetStatus() map[string]interface{}
}

type Handler struct {
	aggregator Predictor
	history    HistoryReader
	failures   FailureLister
	scheduler  StatusReporter
	validate   *validator.Validate
	logger     *zap.Logger
}

type HandlerOption func(*Handler)

func WithHistory(history HistoryReader) HandlerOption {
	return func(h *Handler) { h.history = history }
}

func WithFailures(failures FailureLister) HandlerOption {
	return func(h *Handler) { h.failures = failures }
}

func WithScheduler(scheduler StatusReporter) HandlerOption {
	return func(h *Handler) { h.scheduler = scheduler }
}

func NewHandler(aggregator Predictor, logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		aggregator: aggregator,
		validate:   newValidator(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type predictionParams struct {
	Location string `query:"location" validate:"required,max=200"`
	Date     string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Format   string `query:"format" validate:"omitempty,oneof=json msgpack"`
}

type historyParams struct {
	Location string `query:"location" validate:"max=200"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Format   string `query:"format" validate:"omitempty,oneof=json msgpack"`
}

// GetPrediction handles GET /api/v1/predictions
func (h *Handler) GetPrediction(c *fiber.Ctx) error {
	var params predictionParams
	if err := h.parseQuery(c, &params); err != nil {
		return badRequest(c, err)
	}

	q, err := models.NewQuery(params.Location, params.Date)
	if err != nil {
		return badRequest(c, err)
	}

	h.logger.Info("Fetching prediction",
		zap.String("location", q.Location),
		zap.String("date", q.DateString()))

	result := h.aggregator.Predict(c.UserContext(), q)
	return respond(c, params.Format, result)
}

// GetHistory handles GET /api/v1/predictions/history
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Prediction history is disabled",
		})
	}

	var params historyParams
	if err := h.parseQuery(c, &params); err != nil {
		return badRequest(c, err)
	}

	results, err := h.history.Recent(c.UserContext(), params.Location, params.Limit)
	if err != nil {
		h.logger.Error("Failed to read prediction history",
			zap.String("location", params.Location),
			zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read prediction history",
			"details": err.Error(),
		})
	}
	if results == nil {
		results = []*models.PredictionResult{}
	}

	return respond(c, params.Format, fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

// GetWeights handles GET /api/v1/weights
func (h *Handler) GetWeights(c *fiber.Ctx) error {
	table := h.aggregator.Weights()

	applied := make(map[models.ProviderID]float64)
	for _, id := range h.aggregator.ProviderIDs() {
		applied[id] = table.Weight(id)
	}

	missing := table.Missing()
	if missing == nil {
		missing = []models.ProviderID{}
	}

	return c.JSON(fiber.Map{
		"weights":        table,
		"default_weight": weights.DefaultWeight,
		"applied":        applied,
		"unweighted":     missing,
	})
}

// GetProviders handles GET /api/v1/providers
func (h *Handler) GetProviders(c *fiber.Ctx) error {
	ids := h.aggregator.ProviderIDs()
	return c.JSON(fiber.Map{
		"providers": ids,
		"count":     len(ids),
	})
}

// GetFailures handles GET /api/v1/failures
func (h *Handler) GetFailures(c *fiber.Ctx) error {
	failures := []events.FailureEvent{}
	if h.failures != nil {
		failures = h.failures.List()
	}

	return c.JSON(fiber.Map{
		"failures": failures,
		"count":    len(failures),
	})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	health := fiber.Map{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"last_fetch": h.aggregator.GetLastFetchTime(),
		"uptime":     time.Since(startTime).String(),
		"providers":  len(h.aggregator.ProviderIDs()),
	}
	if h.scheduler != nil {
		health["scheduler"] = h.scheduler.GetStatus()
	}

	return c.JSON(health)
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics":   h.aggregator.GetStats(),
		"timestamp": time.Now(),
	})
}

func (h *Handler) parseQuery(c *fiber.Ctx, out interface{}) error {
	if err := c.QueryParser(out); err != nil {
		return err
	}
	return h.validate.Struct(out)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Invalid request",
		"details": validationMessage(err),
	})
}

var startTime = time.Now()
