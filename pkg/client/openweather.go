package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

const OpenWeatherMapURL = "https://api.openweathermap.org/data/2.5/forecast"

// OpenWeatherMapExtractor reads the first 3-hour slot of the 5 day forecast.
// The requested date is not sent; the nearest slot is used.
type OpenWeatherMapExtractor struct{}

type OpenWeatherForecastResponse struct {
	Cod  string `json:"cod"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		DtTxt string `json:"dt_txt"`
	} `json:"list"`
}

func (OpenWeatherMapExtractor) BuildRequest(cfg models.ProviderConfig, q models.Query) (string, url.Values) {
	params := url.Values{}
	params.Set("q", q.Location)
	params.Set("appid", cfg.Credential)
	params.Set("units", "metric")
	return cfg.Endpoint, params
}

func (OpenWeatherMapExtractor) Extract(body []byte, _ models.Query) (float64, error) {
	var response OpenWeatherForecastResponse
	if err := decode(body, &response); err != nil {
		return 0, err
	}

	if len(response.List) == 0 {
		return 0, missingField("list[0]")
	}
	if response.List[0].Main.Temp == nil {
		return 0, missingField("list[0].main.temp")
	}

	return *response.List[0].Main.Temp, nil
}

func decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
