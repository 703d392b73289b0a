package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"raincheck/internal/types"
)

// dateLayout is the civil date format used by the Open-Meteo API.
const dateLayout = "2006-01-02"

// dailyVariables is the fixed set of daily aggregates requested from the
// provider. The order does not matter; fields are matched by name.
const dailyVariables = "temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,weathercode"

// OpenMeteoConfig configures the forecast provider client.
type OpenMeteoConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// OpenMeteoClient fetches daily precipitation forecasts from the Open-Meteo
// API. It implements forecast.Provider.
//
// Transport and decode failures are both surfaced as
// types.ErrCodeUpstreamForecast so callers see a single ForecastUnavailable
// condition regardless of where the fetch broke.
type OpenMeteoClient struct {
	base    *BaseClient
	baseURL string
}

// NewOpenMeteoClient creates an Open-Meteo client with its own circuit
// breaker and a bounded per-request timeout.
func NewOpenMeteoClient(cfg OpenMeteoConfig) *OpenMeteoClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &OpenMeteoClient{
		base:    NewBaseClient(httpClient, "open-meteo", DefaultRetryPolicy(), cfg.UserAgent),
		baseURL: cfg.BaseURL,
	}
}

// dailyResponse mirrors the provider's parallel-array daily block. Pointer
// element types keep null entries distinguishable from zero values.
type dailyResponse struct {
	Daily struct {
		Time                 []string   `json:"time"`
		TemperatureMax       []*float64 `json:"temperature_2m_max"`
		TemperatureMin       []*float64 `json:"temperature_2m_min"`
		PrecipitationSum     []*float64 `json:"precipitation_sum"`
		PrecipitationProbMax []*int     `json:"precipitation_probability_max"`
		WeatherCode          []*int     `json:"weathercode"`
	} `json:"daily"`
}

// FetchDaily retrieves the forecast for a single civil date and maps it to a
// ForecastSample (unpersisted; the caller owns caching and storage).
func (c *OpenMeteoClient) FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (*types.ForecastSample, error) {
	days, err := c.fetchRange(ctx, lat, lon, date, date)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("provider returned no data for %s", date.Format(dateLayout)),
			nil,
		)
	}

	d := days[0]
	sample := &types.ForecastSample{
		Date:              types.CivilDate(date),
		Lat:               lat,
		Lon:               lon,
		Source:            types.SourceOpenMeteo,
		PrecipitationProb: d.PrecipitationProb,
		WeatherCode:       d.WeatherCode,
		Summary:           summaryForCode(d.WeatherCode),
		RawPayload: types.RawPayload{
			Provider:        string(types.SourceOpenMeteo),
			TemperatureMaxC: d.TemperatureMaxC,
			TemperatureMinC: d.TemperatureMinC,
		},
	}
	if d.PrecipitationSum != nil {
		sample.PrecipitationMM = *d.PrecipitationSum
	}
	return sample, nil
}

// FetchMultiDay retrieves per-day summaries starting at startDate. The days
// argument must already be clamped by the caller; the provider is asked for
// exactly that span.
func (c *OpenMeteoClient) FetchMultiDay(ctx context.Context, lat, lon float64, startDate time.Time, days int) ([]types.DailyForecastSummary, error) {
	end := startDate.AddDate(0, 0, days-1)
	return c.fetchRange(ctx, lat, lon, startDate, end)
}

// fetchRange queries the provider for [start, end] and decodes the parallel
// arrays into per-day summaries. Missing array entries stay nil.
func (c *OpenMeteoClient) fetchRange(ctx context.Context, lat, lon float64, start, end time.Time) ([]types.DailyForecastSummary, error) {
	q := url.Values{}
	q.Set("latitude", strconvFloat(lat))
	q.Set("longitude", strconvFloat(lon))
	q.Set("daily", dailyVariables)
	q.Set("timezone", "UTC")
	q.Set("start_date", start.Format(dateLayout))
	q.Set("end_date", end.Format(dateLayout))

	endpoint := fmt.Sprintf("%s/forecast?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build forecast request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast provider returned %d", resp.StatusCode),
			nil,
		)
	}

	var body dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "failed to decode forecast response", err)
	}

	summaries := make([]types.DailyForecastSummary, 0, len(body.Daily.Time))
	for i, ts := range body.Daily.Time {
		date, perr := time.Parse(dateLayout, ts)
		if perr != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "provider returned malformed date", perr)
		}
		s := types.DailyForecastSummary{
			Date:              date,
			TemperatureMaxC:   at(body.Daily.TemperatureMax, i),
			TemperatureMinC:   at(body.Daily.TemperatureMin, i),
			PrecipitationProb: at(body.Daily.PrecipitationProbMax, i),
			WeatherCode:       at(body.Daily.WeatherCode, i),
		}
		if sum := at(body.Daily.PrecipitationSum, i); sum != nil {
			d := decimal.NewFromFloat(*sum)
			s.PrecipitationSum = &d
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// at returns the i-th element of a parallel array, or nil when the provider
// omitted the array or truncated it short of the time axis.
func at[T any](arr []*T, i int) *T {
	if i >= len(arr) {
		return nil
	}
	return arr[i]
}

func strconvFloat(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// summaryForCode maps WMO weather interpretation codes to a short human
// summary. Unknown codes fall back to a generic description.
func summaryForCode(code *int) string {
	if code == nil {
		return ""
	}
	switch {
	case *code == 0:
		return "clear sky"
	case *code <= 3:
		return "partly cloudy"
	case *code <= 48:
		return "fog"
	case *code <= 57:
		return "drizzle"
	case *code <= 67:
		return "rain"
	case *code <= 77:
		return "snow"
	case *code <= 82:
		return "rain showers"
	case *code <= 86:
		return "snow showers"
	case *code >= 95:
		return "thunderstorm"
	default:
		return "unsettled"
	}
}
