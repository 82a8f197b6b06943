package client

import (
	"errors"
	"net/url"
	"strings"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

const TomorrowIOURL = "https://api.tomorrow.io/v4/timelines"

// ErrNoMatchingInterval means the daily timeline has no entry for the requested date.
var ErrNoMatchingInterval = errors.New("no forecast interval matches requested date")

// TomorrowIOExtractor filters the daily timeline client-side by date.
type TomorrowIOExtractor struct{}

type TomorrowIOResponse struct {
	Data *struct {
		Timelines []struct {
			Timestep  string `json:"timestep"`
			Intervals []struct {
				StartTime string `json:"startTime"`
				Values    struct {
					Temperature *float64 `json:"temperature"`
				} `json:"values"`
			} `json:"intervals"`
		} `json:"timelines"`
	} `json:"data"`
}

func (TomorrowIOExtractor) BuildRequest(cfg models.ProviderConfig, q models.Query) (string, url.Values) {
	params := url.Values{}
	params.Set("location", q.Location)
	params.Set("apikey", cfg.Credential)
	params.Set("fields", "temperature")
	params.Set("timesteps", "1d")
	params.Set("units", "metric")
	return cfg.Endpoint, params
}

func (TomorrowIOExtractor) Extract(body []byte, q models.Query) (float64, error) {
	var response TomorrowIOResponse
	if err := decode(body, &response); err != nil {
		return 0, err
	}

	if response.Data == nil {
		return 0, missingField("data")
	}
	if len(response.Data.Timelines) == 0 {
		return 0, missingField("data.timelines[0]")
	}

	date := q.DateString()
	for _, interval := range response.Data.Timelines[0].Intervals {
		if !strings.HasPrefix(interval.StartTime, date) {
			continue
		}
		if interval.Values.Temperature == nil {
			return 0, missingField("intervals[].values.temperature")
		}
		return *interval.Values.Temperature, nil
	}

	return 0, ErrNoMatchingInterval
}
