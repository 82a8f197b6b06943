package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuery(t *testing.T) {
	q, err := NewQuery("  Buffalo, NY ", "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, "Buffalo, NY", q.Location)
	assert.Equal(t, "2024-03-05", q.DateString())
	assert.Equal(t, "buffalo, ny|2024-03-05", q.Key())
}

func TestNewQueryDefaultsToToday(t *testing.T) {
	q, err := NewQuery("Prague", "")
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Format(DateLayout), q.DateString())
	assert.Equal(t, time.UTC, q.Date.Location())
}

func TestNewQueryRejectsBadInput(t *testing.T) {
	_, err := NewQuery("", "2024-03-05")
	assert.ErrorIs(t, err, ErrEmptyLocation)

	_, err = NewQuery("Prague", "05/03/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseProviderID(t *testing.T) {
	id, err := ParseProviderID("tomorrowio")
	require.NoError(t, err)
	assert.Equal(t, TomorrowIO, id)

	_, err = ParseProviderID("OpenMeteo")
	assert.Error(t, err)
}

func TestResultSourcesFollowDisplayOrder(t *testing.T) {
	r := &PredictionResult{Predictions: PredictionSet{
		AccuWeather:    3,
		OpenWeatherMap: 1,
		TomorrowIO:     2,
	}}
	assert.Equal(t, []ProviderID{OpenWeatherMap, TomorrowIO, AccuWeather}, r.Sources())
	assert.False(t, r.HasCombined())
}
