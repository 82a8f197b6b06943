package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used in queries and provider requests.
const DateLayout = "2006-01-02"

// NoPredictionMessage is attached to results whose prediction set is empty.
const NoPredictionMessage = "no prediction available"

type ProviderID string

const (
	OpenWeatherMap ProviderID = "OpenWeatherMap"
	WeatherStack   ProviderID = "WeatherStack"
	TomorrowIO     ProviderID = "TomorrowIO"
	VisualCrossing ProviderID = "VisualCrossing"
	AccuWeather    ProviderID = "AccuWeather"
)

// AllProviders lists every supported provider in display order.
var AllProviders = []ProviderID{
	OpenWeatherMap,
	WeatherStack,
	TomorrowIO,
	VisualCrossing,
	AccuWeather,
}

func (p ProviderID) Valid() bool {
	for _, id := range AllProviders {
		if id == p {
			return true
		}
	}
	return false
}

func (p ProviderID) String() string {
	return string(p)
}

// ParseProviderID matches a provider name case-insensitively.
func ParseProviderID(name string) (ProviderID, error) {
	name = strings.TrimSpace(name)
	for _, id := range AllProviders {
		if strings.EqualFold(string(id), name) {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

type ProviderConfig struct {
	Endpoint   string `json:"endpoint"`
	Credential string `json:"-"`
}

var (
	ErrEmptyLocation = errors.New("location is required")
	ErrInvalidDate   = errors.New("date must be formatted as YYYY-MM-DD")
)

// Query identifies one evaluation: a free-text place name and a calendar date.
type Query struct {
	Location string
	Date     time.Time
}

// NewQuery builds a Query from user input. An empty date means the current
// calendar date in UTC, not the server's local zone. Callers that care about
// a local day must send the date explicitly.
func NewQuery(location, date string) (Query, error) {
	q := Query{Location: strings.TrimSpace(location)}

	if date == "" {
		now := time.Now().UTC()
		q.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		d, err := time.Parse(DateLayout, date)
		if err != nil {
			return Query{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		q.Date = d
	}

	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

func (q Query) Validate() error {
	if strings.TrimSpace(q.Location) == "" {
		return ErrEmptyLocation
	}
	if q.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (q Query) DateString() string {
	return q.Date.Format(DateLayout)
}

// Key is the canonical cache and storage key for the query.
func (q Query) Key() string {
	return strings.ToLower(strings.TrimSpace(q.Location)) + "|" + q.DateString()
}

type Observation struct {
	Provider     ProviderID `json:"provider"`
	TemperatureC float64    `json:"temperature_c"`
	ObservedAt   time.Time  `json:"observed_at"`
}

// PredictionSet holds one value per provider that produced an observation.
type PredictionSet map[ProviderID]float64

type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureSchema    FailureKind = "schema"
	FailureConfig    FailureKind = "config"
	FailureInternal  FailureKind = "internal"
)

type ProviderFailure struct {
	Provider ProviderID  `json:"provider"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
}

// PredictionResult is the structure handed to presentation layers.
// Combined is nil when no provider produced an observation.
type PredictionResult struct {
	ID          string                 `json:"id"`
	Location    string                 `json:"location"`
	Date        string                 `json:"date"`
	Predictions PredictionSet          `json:"predictions"`
	Combined    *float64               `json:"combined"`
	Weights     map[ProviderID]float64 `json:"weights"`
	Failures    []ProviderFailure      `json:"failures,omitempty"`
	Message     string                 `json:"message,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

func (r *PredictionResult) HasCombined() bool {
	return r != nil && r.Combined != nil
}

// Sources returns the contributing providers in display order.
func (r *PredictionResult) Sources() []ProviderID {
	sources := make([]ProviderID, 0, len(r.Predictions))
	for _, id := range AllProviders {
		if _, ok := r.Predictions[id]; ok {
			sources = append(sources, id)
		}
	}
	return sources
}
