package client

import (
	"net/url"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

const AccuWeatherURL = "https://dataservice.accuweather.com/forecasts/v1/daily/1day"

// AccuWeatherExtractor reads the daily maximum of the 1 day forecast.
type AccuWeatherExtractor struct{}

type AccuWeatherResponse struct {
	DailyForecasts []struct {
		Date        string `json:"Date"`
		Temperature *struct {
			Maximum *struct {
				Value *float64 `json:"Value"`
				Unit  string   `json:"Unit"`
			} `json:"Maximum"`
		} `json:"Temperature"`
	} `json:"DailyForecasts"`
}

func (AccuWeatherExtractor) BuildRequest(cfg models.ProviderConfig, q models.Query) (string, url.Values) {
	params := url.Values{}
	params.Set("apikey", cfg.Credential)
	params.Set("q", q.Location)
	params.Set("metric", "true")
	return cfg.Endpoint, params
}

func (AccuWeatherExtractor) Extract(body []byte, _ models.Query) (float64, error) {
	var response AccuWeatherResponse
	if err := decode(body, &response); err != nil {
		return 0, err
	}

	if len(response.DailyForecasts) == 0 {
		return 0, missingField("DailyForecasts[0]")
	}
	temp := response.DailyForecasts[0].Temperature
	if temp == nil || temp.Maximum == nil || temp.Maximum.Value == nil {
		return 0, missingField("DailyForecasts[0].Temperature.Maximum.Value")
	}

	return *temp.Maximum.Value, nil
}
