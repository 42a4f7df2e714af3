package models

import (
	"regexp"
	"strings"
	"time"
)

// Feed identifies which catalog an event came from
type Feed string

const (
	FeedJSON Feed = "json"
	FeedXML  Feed = "xml"
)

// XMLIDPrefix keeps XML-sourced ids from colliding with JSON-sourced ones
const XMLIDPrefix = "xml-"

// StationLine is one transit line serving a station
type StationLine struct {
	LineNumber string `json:"line_number"`
	ColorHex   string `json:"color_hex"`
}

// Event is the canonical record shared by both feeds. It is the unit of
// storage and is completed incrementally by the enrichment queues.
type Event struct {
	ID                string        `json:"id"`
	Source            Feed          `json:"source"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	IsFree            bool          `json:"is_free"`
	PriceText         string        `json:"price_text"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	ScheduleText      string        `json:"schedule_text"`
	AudienceTags      []string      `json:"audience_tags"`
	VenueName         string        `json:"venue_name"`
	Locality          string        `json:"locality"`
	PostalCode        string        `json:"postal_code"`
	StreetAddress     string        `json:"street_address"`
	Latitude          *float64      `json:"latitude"`
	Longitude         *float64      `json:"longitude"`
	OrganizationName  string        `json:"organization_name"`
	DetailLink        string        `json:"detail_link"`
	ImageURL          string        `json:"image_url"`
	District          string        `json:"district"`
	Neighborhood      string        `json:"neighborhood"`
	DistanceKm        *float64      `json:"distance_km"`
	NearestStation    string        `json:"nearest_station"`
	StationLines      []StationLine `json:"station_lines"`
	ExcludedDatesText string        `json:"excluded_dates_text"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// freeKeyword matches free-admission wording in the feeds' language
var freeKeyword = regexp.MustCompile(`(?i)\b(gratuit[oa]s?|gratis|entrada\s+libre|acceso\s+libre|free)\b`)

// MentionsFree reports whether a price text advertises free admission
func MentionsFree(priceText string) bool {
	return freeKeyword.MatchString(priceText)
}

// IsActive reports whether the event has not ended yet. Events without an
// end time are not active.
func IsActive(e *Event, now time.Time) bool {
	if e.EndTime.IsZero() {
		return false
	}
	return !e.EndTime.Before(now)
}

// IsEffectivelyFree is true when the feed flags the event as free or its price
// text says so
func IsEffectivelyFree(e *Event) bool {
	return e.IsFree || MentionsFree(e.PriceText)
}

var parenthesized = regexp.MustCompile(`\s*\(([^()]*)\)`)

// CleanVenueName strips parenthesized segments that merely repeat the
// district or neighborhood, e.g. "Centro Cultural (Centro)" -> "Centro Cultural".
func CleanVenueName(name, district, neighborhood string) string {
	if name == "" || (district == "" && neighborhood == "") {
		return name
	}

	cleaned := parenthesized.ReplaceAllStringFunc(name, func(segment string) string {
		inner := parenthesized.FindStringSubmatch(segment)[1]
		inner = strings.TrimSpace(inner)
		if (district != "" && strings.EqualFold(inner, district)) ||
			(neighborhood != "" && strings.EqualFold(inner, neighborhood)) {
			return ""
		}
		return segment
	})

	return strings.Join(strings.Fields(cleaned), " ")
}
