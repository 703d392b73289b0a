package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

const openMeteoDaily = `{
	"daily": {
		"time": ["2026-09-12", "2026-09-13"],
		"temperature_2m_max": [24.1, 21.0],
		"temperature_2m_min": [15.3, 13.8],
		"precipitation_sum": [5.5, null],
		"precipitation_probability_max": [80, 20],
		"weathercode": [61, 2]
	}
}`

func newTestOpenMeteoClient(baseURL string) *OpenMeteoClient {
	return &OpenMeteoClient{
		base: NewBaseClient(
			&http.Client{Timeout: 5 * time.Second},
			"open-meteo-test",
			RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Second},
			"",
			WithSleepFunc(func(time.Duration) {}),
		),
		baseURL: baseURL,
	}
}

func TestFetchDaily_MapsProviderResponse(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openMeteoDaily))
	}))
	defer srv.Close()

	client := newTestOpenMeteoClient(srv.URL)
	date := time.Date(2026, 9, 12, 14, 30, 0, 0, time.UTC)

	sample, err := client.FetchDaily(context.Background(), -34.9215, -57.9545, date)
	require.NoError(t, err)

	assert.Equal(t, "-34.9215", query.Get("latitude"))
	assert.Equal(t, "2026-09-12", query.Get("start_date"))
	assert.Equal(t, "2026-09-12", query.Get("end_date"))
	assert.Equal(t, "UTC", query.Get("timezone"))

	assert.Equal(t, types.CivilDate(date), sample.Date)
	assert.Equal(t, types.SourceOpenMeteo, sample.Source)
	assert.Equal(t, "5.5", sample.PrecipitationMM.String())
	require.NotNil(t, sample.PrecipitationProb)
	assert.Equal(t, 80, *sample.PrecipitationProb)
	require.NotNil(t, sample.WeatherCode)
	assert.Equal(t, 61, *sample.WeatherCode)
	assert.Equal(t, "rain", sample.Summary)
	require.NotNil(t, sample.RawPayload.TemperatureMaxC)
	assert.Equal(t, 24.1, *sample.RawPayload.TemperatureMaxC)
}

func TestFetchDaily_EmptyResponseIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily": {"time": []}}`))
	}))
	defer srv.Close()

	client := newTestOpenMeteoClient(srv.URL)
	_, err := client.FetchDaily(context.Background(), -34.9215, -57.9545, time.Now())
	requireAppErrCode(t, err, types.ErrCodeUpstreamForecast)
}

func TestFetchMultiDay_NullEntriesStayNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(openMeteoDaily))
	}))
	defer srv.Close()

	client := newTestOpenMeteoClient(srv.URL)
	start := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)

	summaries, err := client.FetchMultiDay(context.Background(), -34.9215, -57.9545, start, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	require.NotNil(t, summaries[0].PrecipitationSum)
	assert.Equal(t, "5.5", summaries[0].PrecipitationSum.String())
	assert.Nil(t, summaries[1].PrecipitationSum, "null provider entries must not collapse to zero")
	require.NotNil(t, summaries[1].WeatherCode)
	assert.Equal(t, 2, *summaries[1].WeatherCode)
}

func TestFetchDaily_ProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestOpenMeteoClient(srv.URL)
	_, err := client.FetchDaily(context.Background(), -34.9215, -57.9545, time.Now())
	requireAppErrCode(t, err, types.ErrCodeUpstreamForecast)
}

func TestSummaryForCode(t *testing.T) {
	codeOf := func(c int) *int { return &c }

	assert.Equal(t, "clear sky", summaryForCode(codeOf(0)))
	assert.Equal(t, "rain", summaryForCode(codeOf(63)))
	assert.Equal(t, "thunderstorm", summaryForCode(codeOf(95)))
	assert.Equal(t, "", summaryForCode(nil))
}
