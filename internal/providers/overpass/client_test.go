package overpass

import (
	"context"
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
	return NewClient(commonhttp.NewFetcher(server.Client(), "test"), Config{
		Endpoint: server.URL + "/api/interpreter",
		RadiusM:  1000,
		Operator: "Metro de Madrid",
	})
}

func TestQuery(t *testing.T) {
	c := NewClient(nil, Config{Operator: `Metro "X"`})
	q := c.Query(40.4169, -3.7035)

	assert.Contains(t, q, `["operator"="Metro \"X\""]`)
	assert.Contains(t, q, "(around:1000,40.416900,-3.703500)")
	assert.Contains(t, q, "[out:json]")
}

func TestQueryWithoutOperator(t *testing.T) {
	q := NewClient(nil, Config{RadiusM: 500}).Query(1, 2)
	assert.NotContains(t, q, "operator")
	assert.Contains(t, q, "(around:500,")
}

func TestNearestStation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), `"operator"="Metro de Madrid"`)
		w.Write([]byte(`{"elements":[
			{"type":"node","lat":40.4203,"lon":-3.7058,"tags":{"name":"Callao"}},
			{"type":"node","lat":40.4168,"lon":-3.7038,"tags":{"name":"Sol"}},
			{"type":"node","lat":40.4169,"lon":-3.7035,"tags":{}},
			{"type":"way","center":{"lat":40.4250,"lon":-3.7120},"tags":{"name":"Plaza de España"}}
		]}`))
	})

	name, err := client.NearestStation(context.Background(), 40.4169, -3.7035)
	require.NoError(t, err)
	assert.Equal(t, "Sol", name)
}

func TestNearestStationNone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[]}`))
	})

	name, err := client.NearestStation(context.Background(), 40.4, -3.7)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestNearestStationServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	_, err := client.NearestStation(context.Background(), 40.4, -3.7)
	upstream, ok := commonhttp.AsUpstream(err)
	require.True(t, ok)
	assert.True(t, upstream.IsServerError())
}
