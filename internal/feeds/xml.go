package feeds

import (
	"sort"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"

	apperrors "event-enricher/internal/common/errors"
	"event-enricher/internal/common/sanitize"
	"event-enricher/internal/models"
)

// XMLRecord is one <service> element of the XML catalog
type XMLRecord = mxj.Map

const xmlServicePath = "serviceList.service"

// ParseXMLFeed decodes the catalog into its service entries
func ParseXMLFeed(data []byte) ([]XMLRecord, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, apperrors.ParseError(string(models.FeedXML), err, apperrors.Sample(data, 200))
	}

	values, err := m.ValuesForPath(xmlServicePath)
	if err != nil {
		return nil, apperrors.ParseError(string(models.FeedXML), err, apperrors.Sample(data, 200))
	}

	records := make([]XMLRecord, 0, len(values))
	for _, v := range values {
		if service, ok := v.(map[string]interface{}); ok {
			records = append(records, XMLRecord(service))
		}
	}
	return records, nil
}

// FromXMLFeedRecord maps a service entry onto the canonical event. It returns
// nil when the entry has no id or lacks the basicData, geoData or extradata
// sections.
func FromXMLFeedRecord(rec XMLRecord) *models.Event {
	id := text(rec["-id"])
	basic, okBasic := section(rec, "basicData")
	geo, okGeo := section(rec, "geoData")
	extra, okExtra := section(rec, "extradata")
	if id == "" || !okBasic || !okGeo || !okExtra {
		return nil
	}

	items := attributeItems(extra)
	start, end := dateRange(extra)

	title := sanitize.Text(text(basic["name"]))
	if title == "" {
		title = sanitize.Text(text(basic["title"]))
	}

	return &models.Event{
		ID:               models.XMLIDPrefix + id,
		Source:           models.FeedXML,
		Title:            title,
		Description:      sanitize.StripCDATA(text(basic["body"])),
		IsFree:           truthy(items.first("free", "gratuito", "gratis")),
		PriceText:        sanitize.Text(items.first("price", "precio")),
		StartTime:        start,
		EndTime:          end,
		ScheduleText:     sanitize.Text(items.first("schedule", "horario")),
		AudienceTags:     items.tags("category", "subcategory"),
		VenueName:        sanitize.Text(items.first("venue", "lugar")),
		Locality:         sanitize.Text(text(geo["subAdministrativeArea"])),
		PostalCode:       strings.TrimSpace(text(geo["zipcode"])),
		StreetAddress:    sanitize.Text(text(geo["address"])),
		Latitude:         parseFloat(text(geo["latitude"])),
		Longitude:        parseFloat(text(geo["longitude"])),
		OrganizationName: sanitize.Text(items.first("organizer", "organizador")),
		DetailLink:       strings.TrimSpace(text(basic["web"])),
		ImageURL:         firstImage(rec),
	}
}

func section(rec mxj.Map, key string) (map[string]interface{}, bool) {
	switch v := rec[key].(type) {
	case map[string]interface{}:
		return v, true
	case []interface{}:
		if len(v) > 0 {
			m, ok := v[0].(map[string]interface{})
			return m, ok
		}
	}
	return nil, false
}

// text returns the character data of a decoded element, whether it is a bare
// value or an element carrying attributes
func text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		return text(t["#text"])
	case []interface{}:
		if len(t) > 0 {
			return text(t[0])
		}
	case nil:
		return ""
	}
	return ""
}

type attribute struct {
	name  string
	value string
}

type attributes []attribute

// attributeItems walks a subtree collecting every <item name="..."> entry.
// Repeated elements keep document order; sibling keys are visited sorted.
func attributeItems(root interface{}) attributes {
	var out attributes
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			if name, ok := t["-name"].(string); ok {
				out = append(out, attribute{name: strings.TrimSpace(name), value: text(t["#text"])})
				return
			}
			for _, key := range sortedKeys(t) {
				walk(t[key])
			}
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(root)
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a attributes) first(names ...string) string {
	for _, attr := range a {
		for _, name := range names {
			if strings.EqualFold(attr.name, name) && attr.value != "" {
				return attr.value
			}
		}
	}
	return ""
}

// tags returns the distinct values of items named exactly like one of names
func (a attributes) tags(names ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, attr := range a {
		for _, name := range names {
			if !strings.EqualFold(attr.name, name) {
				continue
			}
			value := sanitize.Text(attr.value)
			if value != "" && !seen[value] {
				seen[value] = true
				out = append(out, value)
			}
		}
	}
	return out
}

const xmlDateLayout = "02/01/2006"

// dateRange spans every <rango> under fechas: earliest start, latest end, at
// midnight UTC
func dateRange(extra map[string]interface{}) (time.Time, time.Time) {
	ranges, err := mxj.Map(extra).ValuesForPath("fechas.rango")
	if err != nil {
		return time.Time{}, time.Time{}
	}

	var start, end time.Time
	for _, r := range ranges {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		if s, err := time.Parse(xmlDateLayout, text(m["inicio"])); err == nil {
			if start.IsZero() || s.Before(start) {
				start = s
			}
		}
		if e, err := time.Parse(xmlDateLayout, text(m["fin"])); err == nil {
			if end.IsZero() || e.After(end) {
				end = e
			}
		}
	}
	return start, end
}

func firstImage(rec mxj.Map) string {
	media, err := rec.ValuesForPath("multimedia.media")
	if err != nil {
		return ""
	}
	for _, m := range media {
		entry, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		if strings.EqualFold(text(entry["-type"]), "image") {
			if url := text(entry["url"]); url != "" {
				return url
			}
		}
	}
	return ""
}
