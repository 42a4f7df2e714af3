package feeds

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"

	apperrors "event-enricher/internal/common/errors"
	"event-enricher/internal/models"
)

// JSONRecord is one entry of the JSON-LD catalog's @graph
type JSONRecord struct {
	ID            flexString  `json:"id"`
	Title         flexString  `json:"title"`
	Description   flexString  `json:"description"`
	Free          flexBool    `json:"free"`
	Price         flexString  `json:"price"`
	Start         flexString  `json:"dtstart"`
	End           flexString  `json:"dtend"`
	Time          flexString  `json:"time"`
	ExcludedDays  flexString  `json:"excluded-days"`
	Audience      flexStrings `json:"audience"`
	Link          flexString  `json:"link"`
	EventLocation flexString  `json:"event-location"`
	Address       struct {
		Area struct {
			Locality      flexString `json:"locality"`
			PostalCode    flexString `json:"postal-code"`
			StreetAddress flexString `json:"street-address"`
		} `json:"area"`
	} `json:"address"`
	Location struct {
		Latitude  flexFloat `json:"latitude"`
		Longitude flexFloat `json:"longitude"`
	} `json:"location"`
	Organization struct {
		Name flexString `json:"organization-name"`
	} `json:"organization"`
}

type jsonDocument struct {
	Graph []json.RawMessage `json:"@graph"`
}

// ParseJSONFeed decodes the catalog. Entries that do not decode are skipped
// and counted; a document that does not decode at all is a parse error.
func ParseJSONFeed(data []byte) ([]JSONRecord, int, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, apperrors.ParseError(string(models.FeedJSON), err, apperrors.Sample(data, 200))
	}
	if doc.Graph == nil {
		return nil, 0, apperrors.ParseError(string(models.FeedJSON), errMissingGraph, apperrors.Sample(data, 200))
	}

	records := make([]JSONRecord, 0, len(doc.Graph))
	skipped := 0
	for _, raw := range doc.Graph {
		var rec JSONRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

var jsonTimeLayouts = []string{
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseFeedTime reads a feed-local timestamp in loc and returns it in UTC
func parseFeedTime(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	for _, layout := range jsonTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// FromJSONFeedRecord maps a catalog entry onto the canonical event. Missing
// scalars stay empty and a price text advertising free entry marks the event free.
func FromJSONFeedRecord(rec JSONRecord, loc *time.Location) *models.Event {
	if loc == nil {
		loc = time.UTC
	}
	price := rec.Price.String()

	return &models.Event{
		ID:                rec.ID.String(),
		Source:            models.FeedJSON,
		Title:             rec.Title.String(),
		Description:       rec.Description.String(),
		IsFree:            bool(rec.Free) || models.MentionsFree(price),
		PriceText:         price,
		StartTime:         parseFeedTime(rec.Start.String(), loc),
		EndTime:           parseFeedTime(rec.End.String(), loc),
		ScheduleText:      rec.Time.String(),
		AudienceTags:      []string(rec.Audience),
		VenueName:         rec.EventLocation.String(),
		Locality:          rec.Address.Area.Locality.String(),
		PostalCode:        rec.Address.Area.PostalCode.String(),
		StreetAddress:     rec.Address.Area.StreetAddress.String(),
		Latitude:          rec.Location.Latitude.Ptr(),
		Longitude:         rec.Location.Longitude.Ptr(),
		OrganizationName:  rec.Organization.Name.String(),
		DetailLink:        rec.Link.String(),
		ExcludedDatesText: rec.ExcludedDays.String(),
	}
}
