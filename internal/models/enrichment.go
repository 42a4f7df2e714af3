package models

// ImageNotFoundURL is stored when scraping finds no image so the lookup is
// not repeated. It can be overridden from configuration.
var ImageNotFoundURL = "https://placehold.co/600x400?text=Image+not+found"

// PartialEnrichment holds the externally derived fields of an event. Empty
// strings and nil slices mean "not known yet".
type PartialEnrichment struct {
	District       string        `json:"district,omitempty"`
	Neighborhood   string        `json:"neighborhood,omitempty"`
	StreetAddress  string        `json:"street_address,omitempty"`
	Locality       string        `json:"locality,omitempty"`
	NearestStation string        `json:"nearest_station,omitempty"`
	StationLines   []StationLine `json:"station_lines,omitempty"`
	ImageURL       string        `json:"image_url,omitempty"`
}

// Merge combines what is already persisted with freshly fetched data.
// A populated field in existing is never replaced, so completion is monotonic.
func Merge(existing, fresh PartialEnrichment) PartialEnrichment {
	merged := existing

	merged.District = firstNonEmpty(existing.District, fresh.District)
	merged.Neighborhood = firstNonEmpty(existing.Neighborhood, fresh.Neighborhood)
	merged.StreetAddress = firstNonEmpty(existing.StreetAddress, fresh.StreetAddress)
	merged.Locality = firstNonEmpty(existing.Locality, fresh.Locality)
	merged.NearestStation = firstNonEmpty(existing.NearestStation, fresh.NearestStation)
	merged.ImageURL = firstNonEmpty(existing.ImageURL, fresh.ImageURL)

	if len(existing.StationLines) == 0 && len(fresh.StationLines) > 0 {
		merged.StationLines = append([]StationLine(nil), fresh.StationLines...)
	}

	// lines belong to a station; an unknown station cannot carry lines
	if merged.NearestStation == "" {
		merged.StationLines = nil
	}

	return merged
}

// HasLocation reports whether reverse geocoding has resolved the area
func (p PartialEnrichment) HasLocation() bool {
	return p.District != ""
}

// HasTransit reports whether a nearest station is known
func (p PartialEnrichment) HasTransit() bool {
	return p.NearestStation != ""
}

// HasImage reports whether an image (or the not-found sentinel) is stored
func (p PartialEnrichment) HasImage() bool {
	return p.ImageURL != ""
}

// EnrichmentOf extracts the enrichment fields of an event
func EnrichmentOf(e *Event) PartialEnrichment {
	if e == nil {
		return PartialEnrichment{}
	}
	return PartialEnrichment{
		District:       e.District,
		Neighborhood:   e.Neighborhood,
		StreetAddress:  e.StreetAddress,
		Locality:       e.Locality,
		NearestStation: e.NearestStation,
		StationLines:   e.StationLines,
		ImageURL:       e.ImageURL,
	}
}

// ApplyEnrichment copies p onto e
func (e *Event) ApplyEnrichment(p PartialEnrichment) {
	e.District = p.District
	e.Neighborhood = p.Neighborhood
	e.StreetAddress = p.StreetAddress
	e.Locality = p.Locality
	e.NearestStation = p.NearestStation
	e.StationLines = p.StationLines
	e.ImageURL = p.ImageURL
}

// Enrichment states reported per event
const (
	EnrichmentComplete = "complete"
	EnrichmentPartial  = "partial"
)

// EnrichmentStatus summarises which enrichment parts are still missing
type EnrichmentStatus struct {
	ID      string   `json:"id"`
	State   string   `json:"state"`
	Missing []string `json:"missing,omitempty"`
}

// StatusOf reports the enrichment status of e. Location and transit are only
// expected when the event has coordinates.
func StatusOf(e *Event) EnrichmentStatus {
	p := EnrichmentOf(e)
	var missing []string

	if HasValidCoordinates(e) {
		if !p.HasLocation() {
			missing = append(missing, "location")
		}
		if !p.HasTransit() {
			missing = append(missing, "transit")
		}
	}
	if !p.HasImage() {
		missing = append(missing, "image")
	}

	state := EnrichmentComplete
	if len(missing) > 0 {
		state = EnrichmentPartial
	}
	return EnrichmentStatus{ID: e.ID, State: state, Missing: missing}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
