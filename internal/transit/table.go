// Package transit holds the static station to lines table used to decorate
// the nearest station returned by the transit provider.
package transit

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"event-enricher/internal/models"
)

//go:embed lines.json
var embeddedLines []byte

type lineRecord struct {
	Number   string   `json:"number"`
	Color    string   `json:"color"`
	Stations []string `json:"stations"`
}

type dataset struct {
	Lines []lineRecord `json:"lines"`
}

// Table maps a station name to the lines serving it, in dataset order.
// It is read-only after construction.
type Table struct {
	byStation map[string][]models.StationLine
}

// Default returns the table bundled with the binary
func Default() (*Table, error) {
	return Parse(embeddedLines)
}

// LoadFile reads a table in the bundled format from path
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transit lines file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read transit lines: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var ds dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse transit lines: %w", err)
	}

	t := &Table{byStation: make(map[string][]models.StationLine)}
	for _, line := range ds.Lines {
		if line.Number == "" {
			return nil, fmt.Errorf("transit line without number")
		}
		entry := models.StationLine{LineNumber: line.Number, ColorHex: line.Color}
		for _, station := range line.Stations {
			key := normalize(station)
			if key == "" || contains(t.byStation[key], line.Number) {
				continue
			}
			t.byStation[key] = append(t.byStation[key], entry)
		}
	}
	return t, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func contains(lines []models.StationLine, number string) bool {
	for _, l := range lines {
		if l.LineNumber == number {
			return true
		}
	}
	return false
}

// Lines returns a copy of the lines serving station, matched case-insensitively.
// Unknown stations yield nil.
func (t *Table) Lines(station string) []models.StationLine {
	if t == nil {
		return nil
	}
	lines := t.byStation[normalize(station)]
	if len(lines) == 0 {
		return nil
	}
	out := make([]models.StationLine, len(lines))
	copy(out, lines)
	return out
}

// Stations reports how many distinct stations the table knows
func (t *Table) Stations() int {
	if t == nil {
		return 0
	}
	return len(t.byStation)
}
