// Package overpass finds the nearest transit station around a point with an
// Overpass API query filtered by operator.
package overpass

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/models"
)

type Config struct {
	Endpoint string
	RadiusM  int
	Operator string
}

type element struct {
	Type   string             `json:"type"`
	Lat    float64            `json:"lat"`
	Lon    float64            `json:"lon"`
	Center *models.Coordinate `json:"center"`
	Tags   map[string]string  `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

type Client struct {
	fetcher *commonhttp.Fetcher
	config  Config
}

func NewClient(fetcher *commonhttp.Fetcher, config Config) *Client {
	if config.RadiusM <= 0 {
		config.RadiusM = 1000
	}
	return &Client{fetcher: fetcher, config: config}
}

// Query renders the Overpass QL used for a lookup around (lat, lon)
func (c *Client) Query(lat, lon float64) string {
	around := fmt.Sprintf("(around:%d,%s,%s)", c.config.RadiusM,
		strconv.FormatFloat(lat, 'f', 6, 64), strconv.FormatFloat(lon, 'f', 6, 64))

	operator := ""
	if c.config.Operator != "" {
		operator = fmt.Sprintf(`["operator"="%s"]`, escape(c.config.Operator))
	}

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	b.WriteString(`  node["railway"="station"]` + operator + around + ";\n")
	b.WriteString(`  node["public_transport"="station"]` + operator + around + ";\n")
	b.WriteString(`  way["public_transport"="station"]` + operator + around + ";\n")
	b.WriteString(");\nout center tags;")
	return b.String()
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// NearestStation returns the name of the closest matching station, or "" when
// none is within the radius
func (c *Client) NearestStation(ctx context.Context, lat, lon float64) (string, error) {
	form := url.Values{}
	form.Set("data", c.Query(lat, lon))

	resp, err := c.fetcher.PostForm(ctx, c.config.Endpoint, form)
	if err != nil {
		return "", err
	}

	var body response
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("failed to decode overpass response: %w", err)
	}

	origin := models.Coordinate{Lat: lat, Lon: lon}
	best := ""
	bestDistance := 0.0
	for _, el := range body.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			continue
		}
		pos := models.Coordinate{Lat: el.Lat, Lon: el.Lon}
		if el.Center != nil {
			pos = *el.Center
		}
		d := models.HaversineKm(origin, pos)
		if best == "" || d < bestDistance {
			best, bestDistance = name, d
		}
	}

	return best, nil
}
