// Package feeds downloads the public event catalogs and normalizes their
// entries into canonical events.
package feeds

import (
	"context"
	"errors"
	"time"

	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
)

var errMissingGraph = errors.New("document has no @graph")

// Source yields the normalized events of one catalog
type Source interface {
	Feed() models.Feed
	Load(ctx context.Context) ([]*models.Event, error)
}

// JSONSource reads the JSON-LD catalog
type JSONSource struct {
	fetcher  *commonhttp.Fetcher
	url      string
	location *time.Location
	logger   logging.Logger
}

func NewJSONSource(fetcher *commonhttp.Fetcher, url string, location *time.Location, logger logging.Logger) *JSONSource {
	return &JSONSource{fetcher: fetcher, url: url, location: location, logger: logger}
}

func (s *JSONSource) Feed() models.Feed { return models.FeedJSON }

func (s *JSONSource) Load(ctx context.Context) ([]*models.Event, error) {
	resp, err := s.fetcher.Get(ctx, s.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	records, skipped, err := ParseJSONFeed(resp.Body)
	if err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0, len(records))
	for _, rec := range records {
		events = append(events, FromJSONFeedRecord(rec, s.location))
	}

	s.logger.Info("JSON feed loaded",
		logging.Int("records", len(events)),
		logging.Int("skipped", skipped),
		logging.Duration("fetch_duration", resp.Duration))

	return events, nil
}

// XMLSource reads the XML catalog. Entries missing essential sections are dropped here.
type XMLSource struct {
	fetcher *commonhttp.Fetcher
	url     string
	logger  logging.Logger
}

func NewXMLSource(fetcher *commonhttp.Fetcher, url string, logger logging.Logger) *XMLSource {
	return &XMLSource{fetcher: fetcher, url: url, logger: logger}
}

func (s *XMLSource) Feed() models.Feed { return models.FeedXML }

func (s *XMLSource) Load(ctx context.Context) ([]*models.Event, error) {
	resp, err := s.fetcher.Get(ctx, s.url, map[string]string{"Accept": "application/xml"})
	if err != nil {
		return nil, err
	}

	records, err := ParseXMLFeed(resp.Body)
	if err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0, len(records))
	discarded := 0
	for _, rec := range records {
		event := FromXMLFeedRecord(rec)
		if event == nil {
			discarded++
			continue
		}
		events = append(events, event)
	}

	s.logger.Info("XML feed loaded",
		logging.Int("records", len(events)),
		logging.Int("discarded", discarded),
		logging.Duration("fetch_duration", resp.Duration))

	return events, nil
}
