package client

import (
	"fmt"
	"net/url"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

const WeatherStackURL = "http://api.weatherstack.com/forecast"

// WeatherStackExtractor reads the current temperature; the date is ignored.
type WeatherStackExtractor struct{}

type WeatherStackResponse struct {
	Success *bool `json:"success"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
	Current *struct {
		Temperature *float64 `json:"temperature"`
	} `json:"current"`
}

func (WeatherStackExtractor) BuildRequest(cfg models.ProviderConfig, q models.Query) (string, url.Values) {
	params := url.Values{}
	params.Set("access_key", cfg.Credential)
	params.Set("query", q.Location)
	return cfg.Endpoint, params
}

func (WeatherStackExtractor) Extract(body []byte, _ models.Query) (float64, error) {
	var response WeatherStackResponse
	if err := decode(body, &response); err != nil {
		return 0, err
	}

	// weatherstack reports API errors with a 200 status
	if response.Error != nil {
		return 0, fmt.Errorf("api error %d (%s): %s", response.Error.Code, response.Error.Type, response.Error.Info)
	}
	if response.Current == nil {
		return 0, missingField("current")
	}
	if response.Current.Temperature == nil {
		return 0, missingField("current.temperature")
	}

	return *response.Current.Temperature, nil
}
