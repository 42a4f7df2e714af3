package nominatim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonhttp "event-enricher/internal/common/http"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(commonhttp.NewFetcher(server.Client(), "event-enricher/test (ops@example.com)"), server.URL+"/reverse")
}

func TestReverseGeocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "40.416900", r.URL.Query().Get("lat"))
		assert.Equal(t, "-3.703500", r.URL.Query().Get("lon"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Contains(t, r.UserAgent(), "ops@example.com")
		w.Write([]byte(`{"address":{"road":"Puerta del Sol","house_number":"1","quarter":"Sol","city_district":"Centro","city":"Madrid"}}`))
	})

	addr, err := client.ReverseGeocode(context.Background(), 40.4169, -3.7035)
	require.NoError(t, err)
	assert.Equal(t, &Address{District: "Centro", Neighborhood: "Sol", Road: "Puerta del Sol 1", City: "Madrid"}, addr)
}

func TestReverseGeocodeSuburbFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":{"suburb":"Chamberí","town":"Madrid"}}`))
	})

	addr, err := client.ReverseGeocode(context.Background(), 40.43, -3.70)
	require.NoError(t, err)
	assert.Equal(t, "Chamberí", addr.District)
	assert.Empty(t, addr.Neighborhood)
	assert.Equal(t, "Madrid", addr.City)
}

func TestReverseGeocodeNoResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	})

	_, err := client.ReverseGeocode(context.Background(), 0, 0)
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestReverseGeocodeUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ReverseGeocode(context.Background(), 40.4, -3.7)
	upstream, ok := commonhttp.AsUpstream(err)
	require.True(t, ok)
	assert.True(t, upstream.IsRateLimited())
}

func TestReverseGeocodeMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := client.ReverseGeocode(context.Background(), 40.4, -3.7)
	require.Error(t, err)
	_, ok := commonhttp.AsUpstream(err)
	assert.False(t, ok)
}
