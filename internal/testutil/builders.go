package testutil

import (
	"time"

	"event-enricher/internal/models"
)

func floatPtr(f float64) *float64 {
	return &f
}

// EventBuilder helps build test events
type EventBuilder struct {
	event *models.Event
}

// NewEventBuilder starts from an active JSON event without coordinates
func NewEventBuilder(id string) *EventBuilder {
	now := time.Now().UTC()
	return &EventBuilder{
		event: &models.Event{
			ID:        id,
			Source:    models.FeedJSON,
			Title:     "Evento " + id,
			StartTime: now.Add(-time.Hour).Truncate(time.Second),
			EndTime:   now.Add(24 * time.Hour).Truncate(time.Second),
		},
	}
}

func (b *EventBuilder) WithSource(source models.Feed) *EventBuilder {
	b.event.Source = source
	return b
}

func (b *EventBuilder) WithTitle(title string) *EventBuilder {
	b.event.Title = title
	return b
}

func (b *EventBuilder) WithDescription(description string) *EventBuilder {
	b.event.Description = description
	return b
}

func (b *EventBuilder) WithCoordinates(lat, lon float64) *EventBuilder {
	b.event.Latitude = floatPtr(lat)
	b.event.Longitude = floatPtr(lon)
	return b
}

func (b *EventBuilder) WithDistance(km float64) *EventBuilder {
	b.event.DistanceKm = floatPtr(km)
	return b
}

func (b *EventBuilder) WithEndTime(t time.Time) *EventBuilder {
	b.event.EndTime = t
	return b
}

func (b *EventBuilder) WithVenue(venue string) *EventBuilder {
	b.event.VenueName = venue
	return b
}

func (b *EventBuilder) WithDetailLink(link string) *EventBuilder {
	b.event.DetailLink = link
	return b
}

func (b *EventBuilder) WithLocation(district, neighborhood string) *EventBuilder {
	b.event.District = district
	b.event.Neighborhood = neighborhood
	return b
}

func (b *EventBuilder) WithStation(station string, lines ...models.StationLine) *EventBuilder {
	b.event.NearestStation = station
	b.event.StationLines = lines
	return b
}

func (b *EventBuilder) WithImage(url string) *EventBuilder {
	b.event.ImageURL = url
	return b
}

func (b *EventBuilder) WithPrice(text string, free bool) *EventBuilder {
	b.event.PriceText = text
	b.event.IsFree = free
	return b
}

func (b *EventBuilder) Build() *models.Event {
	return cloneEvent(b.event)
}
