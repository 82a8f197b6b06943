package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

func TestReporterLogsAndPublishes(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	bus := NewBus(zap.NewNop())
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	recent := NewRecentFailures(10)
	require.NoError(t, recent.Consume(ctx, bus, zap.NewNop()))

	reporter := NewReporter(bus, logger)
	reporter.Report(FailureEvent{
		QueryID:  "q-1",
		Provider: models.TomorrowIO,
		Kind:     models.FailureSchema,
		Message:  "no forecast interval matches requested date",
		Location: "Buffalo, NY",
		Date:     "2024-03-05",
	})

	require.Eventually(t, func() bool { return len(recent.List()) == 1 }, time.Second, 10*time.Millisecond)

	got := recent.List()[0]
	assert.Equal(t, models.TomorrowIO, got.Provider)
	assert.Equal(t, models.FailureSchema, got.Kind)
	assert.False(t, got.OccurredAt.IsZero())

	entries := logs.FilterMessage("Provider failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "TomorrowIO", entries[0].ContextMap()["provider"])
}

func TestReporterWithoutPublisher(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	NewReporter(nil, zap.New(core)).Report(FailureEvent{Provider: models.AccuWeather, Kind: models.FailureTransport})
	assert.Equal(t, 1, logs.Len())
}

func TestRecentFailuresKeepsNewest(t *testing.T) {
	recent := NewRecentFailures(2)
	recent.Add(FailureEvent{QueryID: "1"})
	recent.Add(FailureEvent{QueryID: "2"})
	recent.Add(FailureEvent{QueryID: "3"})

	list := recent.List()
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].QueryID)
	assert.Equal(t, "2", list[1].QueryID)
}
