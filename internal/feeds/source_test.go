package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "event-enricher/internal/common/errors"
	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestJSONSourceLoad(t *testing.T) {
	url := serve(t, http.StatusOK, jsonFeed)
	src := NewJSONSource(commonhttp.NewFetcher(nil, "test"), url, time.UTC, logging.NopLogger{})

	assert.Equal(t, models.FeedJSON, src.Feed())
	events, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestJSONSourceParseError(t *testing.T) {
	url := serve(t, http.StatusOK, "<html>maintenance</html>")
	src := NewJSONSource(commonhttp.NewFetcher(nil, "test"), url, time.UTC, logging.NopLogger{})

	_, err := src.Load(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParse))
}

func TestXMLSourceLoadDropsIncomplete(t *testing.T) {
	url := serve(t, http.StatusOK, xmlFeed)
	src := NewXMLSource(commonhttp.NewFetcher(nil, "test"), url, logging.NopLogger{})

	assert.Equal(t, models.FeedXML, src.Feed())
	events, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "xml-4521", events[0].ID)
	assert.Equal(t, "xml-4523", events[1].ID)
}

func TestSourceUpstreamError(t *testing.T) {
	url := serve(t, http.StatusServiceUnavailable, "")
	src := NewXMLSource(commonhttp.NewFetcher(nil, "test"), url, logging.NopLogger{})

	_, err := src.Load(context.Background())
	upstream, ok := commonhttp.AsUpstream(err)
	require.True(t, ok)
	assert.True(t, upstream.IsServerError())
}
