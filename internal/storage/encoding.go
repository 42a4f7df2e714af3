package storage

import (
	"strings"
	"time"
	"unicode"

	json "github.com/goccy/go-json"

	"event-enricher/internal/models"
)

// TimeLayout is a fixed-width UTC layout so stored times compare as text
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t for text columns; the zero time becomes ""
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EncodeLines serializes station lines, nil encodes as "[]"
func EncodeLines(lines []models.StationLine) string {
	if len(lines) == 0 {
		return "[]"
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeLines parses station lines; malformed input yields nil
func DecodeLines(data []byte) []models.StationLine {
	if len(data) == 0 {
		return nil
	}
	var lines []models.StationLine
	if err := json.Unmarshal(data, &lines); err != nil || len(lines) == 0 {
		return nil
	}
	return lines
}

// EncodeTags serializes audience tags
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeTags parses audience tags
func DecodeTags(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil || len(tags) == 0 {
		return nil
	}
	return tags
}

// SearchTerms splits a free-text query into letter/digit terms
func SearchTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// DistanceChanged reports whether a recomputed distance differs from the stored one
func DistanceChanged(stored, computed *float64) bool {
	if stored == nil || computed == nil {
		return (stored == nil) != (computed == nil)
	}
	return *stored != *computed
}
