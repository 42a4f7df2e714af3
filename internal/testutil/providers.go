package testutil

import (
	"context"
	"sync"

	"event-enricher/internal/providers/nominatim"
)

// FakeGeocoder answers reverse-geocoding requests from Fn
type FakeGeocoder struct {
	mu    sync.Mutex
	calls int
	Fn    func(lat, lon float64) (*nominatim.Address, error)
}

func (f *FakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*nominatim.Address, error) {
	f.mu.Lock()
	f.calls++
	fn := f.Fn
	f.mu.Unlock()
	if fn == nil {
		return &nominatim.Address{District: "Centro", Neighborhood: "Sol", Road: "Calle Mayor", City: "Madrid"}, nil
	}
	return fn(lat, lon)
}

func (f *FakeGeocoder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeStationFinder answers nearest-station requests from Fn
type FakeStationFinder struct {
	mu    sync.Mutex
	calls int
	Fn    func(lat, lon float64) (string, error)
}

func (f *FakeStationFinder) NearestStation(ctx context.Context, lat, lon float64) (string, error) {
	f.mu.Lock()
	f.calls++
	fn := f.Fn
	f.mu.Unlock()
	if fn == nil {
		return "Sol", nil
	}
	return fn(lat, lon)
}

func (f *FakeStationFinder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeImageFinder answers image lookups from Fn
type FakeImageFinder struct {
	mu    sync.Mutex
	calls int
	Fn    func(link string) (string, error)
}

func (f *FakeImageFinder) FindImage(ctx context.Context, link string) (string, error) {
	f.mu.Lock()
	f.calls++
	fn := f.Fn
	f.mu.Unlock()
	if fn == nil {
		return "https://www.madrid.es/img/" + link, nil
	}
	return fn(link)
}

func (f *FakeImageFinder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
