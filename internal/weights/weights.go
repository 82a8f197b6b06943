// Package weights holds the static provider weight table used when combining
// provider predictions.
package weights

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

// DefaultWeight applies to every provider missing from a Table.
const DefaultWeight = 1.0

// Table maps providers to positive weights. It is read-only after startup.
type Table map[models.ProviderID]float64

// Default returns the historical accuracy weights the dashboard shipped with.
// Only two providers are listed; the rest fall back to DefaultWeight.
func Default() Table {
	return Table{
		models.OpenWeatherMap: 1.1,
		models.WeatherStack:   1.0,
	}
}

func (t Table) Weight(id models.ProviderID) float64 {
	if w, ok := t[id]; ok {
		return w
	}
	return DefaultWeight
}

// Missing reports the providers that will use DefaultWeight.
func (t Table) Missing() []models.ProviderID {
	var missing []models.ProviderID
	for _, id := range models.AllProviders {
		if _, ok := t[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// IsValid reports whether w can be used as a weight.
func IsValid(w float64) bool {
	return w > 0 && !math.IsInf(w, 0)
}

func (t Table) Validate() error {
	for id, w := range t {
		if !id.Valid() {
			return fmt.Errorf("weight for unknown provider %q", id)
		}
		if !IsValid(w) {
			return fmt.Errorf("weight for %s must be a positive finite number, got %v", id, w)
		}
	}
	return nil
}

func (t Table) Clone() Table {
	out := make(Table, len(t))
	for id, w := range t {
		out[id] = w
	}
	return out
}

func (t Table) String() string {
	parts := make([]string, 0, len(t))
	for id, w := range t {
		parts = append(parts, fmt.Sprintf("%s=%s", id, strconv.FormatFloat(w, 'f', -1, 64)))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Parse reads a comma-separated "Provider=weight" list. An empty list yields
// an empty table.
func Parse(list string) (Table, error) {
	t := Table{}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		name, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid weight entry %q, expected Provider=weight", item)
		}

		id, err := models.ParseProviderID(name)
		if err != nil {
			return nil, err
		}

		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %s: %w", id, err)
		}
		t[id] = w
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

type fileFormat struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadFile reads a YAML document of the form:
//
//	weights:
//	  OpenWeatherMap: 1.1
//	  WeatherStack: 1.0
func LoadFile(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weights file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing weights file: %w", err)
	}

	t := make(Table, len(doc.Weights))
	for name, w := range doc.Weights {
		id, err := models.ParseProviderID(name)
		if err != nil {
			return nil, err
		}
		t[id] = w
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
