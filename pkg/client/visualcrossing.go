package client

import (
	"net/url"
	"strings"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

const VisualCrossingURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

// VisualCrossingExtractor embeds location and date in the path, so the
// provider does the date filtering.
type VisualCrossingExtractor struct{}

type VisualCrossingResponse struct {
	ResolvedAddress string `json:"resolvedAddress"`
	Days            []struct {
		Datetime string   `json:"datetime"`
		Temp     *float64 `json:"temp"`
	} `json:"days"`
}

func (VisualCrossingExtractor) BuildRequest(cfg models.ProviderConfig, q models.Query) (string, url.Values) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/") + "/" + url.PathEscape(q.Location) + "/" + q.DateString()

	params := url.Values{}
	params.Set("key", cfg.Credential)
	params.Set("unitGroup", "metric")
	params.Set("include", "days")
	return endpoint, params
}

func (VisualCrossingExtractor) Extract(body []byte, _ models.Query) (float64, error) {
	var response VisualCrossingResponse
	if err := decode(body, &response); err != nil {
		return 0, err
	}

	if len(response.Days) == 0 {
		return 0, missingField("days[0]")
	}
	if response.Days[0].Temp == nil {
		return 0, missingField("days[0].temp")
	}

	return *response.Days[0].Temp, nil
}
