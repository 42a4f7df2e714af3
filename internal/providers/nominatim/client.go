// Package nominatim reverse-geocodes coordinates into administrative areas
// using a Nominatim-compatible service.
package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"

	commonhttp "event-enricher/internal/common/http"
)

// ErrNoResult is returned when the service has no address for the point
var ErrNoResult = errors.New("no address for coordinates")

// Address is the subset of a reverse-geocoding result the pipeline stores
type Address struct {
	District     string
	Neighborhood string
	Road         string
	City         string
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		Road          string `json:"road"`
		Pedestrian    string `json:"pedestrian"`
		HouseNumber   string `json:"house_number"`
		CityDistrict  string `json:"city_district"`
		Borough       string `json:"borough"`
		Suburb        string `json:"suburb"`
		Quarter       string `json:"quarter"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
	} `json:"address"`
}

type Client struct {
	fetcher  *commonhttp.Fetcher
	endpoint string
	language string
}

// NewClient targets endpoint, the full reverse URL (e.g. https://nominatim.openstreetmap.org/reverse).
// The fetcher must carry a user agent with contact details.
func NewClient(fetcher *commonhttp.Fetcher, endpoint string) *Client {
	return &Client{
		fetcher:  fetcher,
		endpoint: endpoint,
		language: "es",
	}
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*Address, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("zoom", "18")
	params.Set("addressdetails", "1")
	params.Set("accept-language", c.language)

	resp, err := c.fetcher.Get(ctx, c.endpoint+"?"+params.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var body reverseResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode reverse geocoding response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, body.Error)
	}

	a := body.Address
	addr := &Address{
		District:     firstNonEmpty(a.CityDistrict, a.Borough, a.Suburb),
		Neighborhood: firstNonEmpty(a.Quarter, a.Neighbourhood),
		Road:         firstNonEmpty(a.Road, a.Pedestrian),
		City:         firstNonEmpty(a.City, a.Town, a.Village),
	}
	if addr.Neighborhood == "" && a.Suburb != addr.District {
		addr.Neighborhood = a.Suburb
	}
	if addr.Road != "" && a.HouseNumber != "" {
		addr.Road = addr.Road + " " + a.HouseNumber
	}
	if *addr == (Address{}) {
		return nil, ErrNoResult
	}

	return addr, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
