package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
)

func newTestClient(t *testing.T, handler http.Handler, maxRetries int, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		WeatherBaseURL:    server.URL + "/forecast",
		AirQualityBaseURL: server.URL + "/air-quality",
		Timeout:           timeout,
		MaxRetries:        maxRetries,
	}, server.Client(), zap.NewNop())
}

func TestFetchCurrent_DecodesNullableFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "51.1577", r.URL.Query().Get("latitude"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":12.5,"weather_code":61,"precipitation":null}}`))
	}), 0, 5*time.Second)

	data, err := client.FetchCurrent(context.Background(), 51.1577, 12.0953)
	require.NoError(t, err)
	require.NotNil(t, data.TemperatureC)
	require.Equal(t, 12.5, *data.TemperatureC)
	require.Nil(t, data.PrecipitationMM)
	require.Nil(t, data.HumidityPct)
}

func TestGetJSON_RetriesTransientOnce(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"current":{}}`))
	}), 1, 5*time.Second)

	_, err := client.FetchCurrent(context.Background(), 51, 12)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}), 3, 5*time.Second)

	_, err := client.FetchCurrent(context.Background(), 51, 12)

	var providerErr *apperrors.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
	require.Equal(t, int32(1), calls.Load(), "4xx responses are permanent")
}

func TestGetJSON_TimeoutMarked(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}), 0, 50*time.Millisecond)

	_, err := client.FetchCurrent(context.Background(), 51, 12)
	require.Error(t, err)
	require.True(t, apperrors.IsTimeout(err))
}

func TestFetchForecast_RequestsWindowLength(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "7", r.URL.Query().Get("forecast_days"))
		_, _ = w.Write([]byte(`{"daily":{"time":[]},"hourly":{"time":[]}}`))
	}), 0, 5*time.Second)

	_, err := client.FetchForecast(context.Background(), 51, 12, 7)
	require.NoError(t, err)
}

func TestFetchAirQuality_PinsUTCTimezone(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "UTC", r.URL.Query().Get("timezone"), "hourly indices are read by UTC hour")
		_, _ = w.Write([]byte(`{"hourly":{"birch_pollen":[null,12.0]}}`))
	}), 0, 5*time.Second)

	data, err := client.FetchAirQuality(context.Background(), 51, 12)
	require.NoError(t, err)
	require.Equal(t, 12.0, HourValue(data.Hourly.BirchPollen, 1))
}

func TestHourValue(t *testing.T) {
	v := 3.5
	values := []*float64{nil, &v}

	require.Equal(t, 0.0, HourValue(values, 0), "null entry defaults to 0")
	require.Equal(t, 3.5, HourValue(values, 1))
	require.Equal(t, 0.0, HourValue(values, 2), "out of range defaults to 0")
	require.Equal(t, 0.0, HourValue(values, -1))
}
