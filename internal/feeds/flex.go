package feeds

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// The public catalogs are loosely typed: numbers arrive as strings, flags as
// 0/1, single values where a list is expected. These types absorb that.

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = flexBool(truthy(s.String()))
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "si", "sí", "yes", "y":
		return true
	}
	return false
}

type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	f.value = parseFloat(s.String())
	return nil
}

func (f flexFloat) Ptr() *float64 {
	return f.value
}

// parseFloat accepts a decimal comma and returns nil for anything unparsable
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] != '[' {
		var s flexString
		if err := s.UnmarshalJSON(data); err != nil {
			return err
		}
		if s.String() == "" {
			*f = nil
			return nil
		}
		*f = flexStrings{s.String()}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("invalid list: %w", err)
	}
	out := make(flexStrings, 0, len(items))
	for _, item := range items {
		var s flexString
		if err := s.UnmarshalJSON(item); err != nil {
			return err
		}
		if v := s.String(); v != "" {
			out = append(out, v)
		}
	}
	*f = out
	return nil
}
