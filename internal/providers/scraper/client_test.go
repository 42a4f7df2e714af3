package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonhttp "event-enricher/internal/common/http"
)

const notFound = "https://example.com/not-found.png"

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(commonhttp.NewFetcher(nil, "test"), Config{
		Selector:    ".image-content img",
		BaseURL:     baseURL,
		NotFoundURL: notFound,
	})
	require.NoError(t, err)
	return c
}

func servePage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClientRequiresSelector(t *testing.T) {
	_, err := NewClient(nil, Config{})
	assert.Error(t, err)

	_, err = NewClient(nil, Config{Selector: "img", BaseURL: "://bad"})
	assert.Error(t, err)
}

func TestFindImageRelative(t *testing.T) {
	server := servePage(t, http.StatusOK,
		`<html><body><div class="image-content"><img src="/UnidadesDescentralizadas/foto.jpg"></div></body></html>`)
	c := newTestClient(t, "https://www.madrid.es")

	img, err := c.FindImage(context.Background(), server.URL+"/evento/1")
	require.NoError(t, err)
	assert.Equal(t, "https://www.madrid.es/UnidadesDescentralizadas/foto.jpg", img)
}

func TestFindImageAbsoluteAndDataSrc(t *testing.T) {
	server := servePage(t, http.StatusOK,
		`<div class="image-content"><img data-src="https://cdn.example.com/a.jpg"></div>`)
	c := newTestClient(t, "https://www.madrid.es")

	img, err := c.FindImage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", img)
}

func TestFindImageUsesPageAsBase(t *testing.T) {
	server := servePage(t, http.StatusOK, `<div class="image-content"><img src="img/b.png"></div>`)
	c := newTestClient(t, "")

	img, err := c.FindImage(context.Background(), server.URL+"/events/page.html")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/events/img/b.png", img)
}

func TestFindImageNotFound(t *testing.T) {
	server := servePage(t, http.StatusOK, `<html><body><p>sin imagen</p></body></html>`)
	c := newTestClient(t, "https://www.madrid.es")

	img, err := c.FindImage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, notFound, img)

	img, err = c.FindImage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, notFound, img)
}

func TestFindImageUpstreamError(t *testing.T) {
	server := servePage(t, http.StatusBadGateway, "")
	c := newTestClient(t, "https://www.madrid.es")

	_, err := c.FindImage(context.Background(), server.URL)
	upstream, ok := commonhttp.AsUpstream(err)
	require.True(t, ok)
	assert.True(t, upstream.IsServerError())
}

func TestExtractContainerSelector(t *testing.T) {
	c, err := NewClient(nil, Config{Selector: ".image-content"})
	require.NoError(t, err)

	src, err := c.Extract([]byte(`<div class="image-content"><span><img src="x.jpg"></span></div>`))
	require.NoError(t, err)
	assert.Equal(t, "x.jpg", src)
}
