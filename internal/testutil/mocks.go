package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"event-enricher/internal/models"
	"event-enricher/internal/storage"
)

// MockStore implements storage.Store in memory with the same completion rules
// as the SQL adapters
type MockStore struct {
	mu     sync.RWMutex
	events map[string]*models.Event
	calls  map[string]int

	// Control error injection
	ErrorOnMethod map[string]error
	// OnUpsert runs before an upsert is applied; a non-nil error aborts it
	OnUpsert func(e *models.Event) error
}

var _ storage.Store = (*MockStore)(nil)

// NewMockStore creates an empty store
func NewMockStore() *MockStore {
	return &MockStore{
		events:        make(map[string]*models.Event),
		calls:         make(map[string]int),
		ErrorOnMethod: make(map[string]error),
	}
}

func (m *MockStore) enter(method string) error {
	m.calls[method]++
	return m.ErrorOnMethod[method]
}

// Calls reports how many times method was invoked
func (m *MockStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// SetError injects err for method; nil clears it
func (m *MockStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.ErrorOnMethod, method)
		return
	}
	m.ErrorOnMethod[method] = err
}

// Put stores a copy of e without completion rules
func (m *MockStore) Put(e *models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = cloneEvent(e)
}

// Get returns a copy of the stored event or nil
func (m *MockStore) Get(id string) *models.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.events[id]; ok {
		return cloneEvent(e)
	}
	return nil
}

// Len returns the number of stored events
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *MockStore) FindOne(ctx context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindOne"); err != nil {
		return nil, err
	}
	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return cloneEvent(e), nil
}

func (m *MockStore) Upsert(ctx context.Context, e *models.Event) error {
	if m.OnUpsert != nil {
		if err := m.OnUpsert(e); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Upsert"); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}

	next := cloneEvent(e)
	next.UpdatedAt = time.Now().UTC()
	if prev, ok := m.events[e.ID]; ok {
		next.Locality = keep(prev.Locality, next.Locality)
		next.StreetAddress = keep(prev.StreetAddress, next.StreetAddress)
		next.ImageURL = keep(prev.ImageURL, next.ImageURL)
		next.District = keep(prev.District, next.District)
		next.Neighborhood = keep(prev.Neighborhood, next.Neighborhood)
		if next.NearestStation == "" {
			next.NearestStation = prev.NearestStation
			next.StationLines = cloneLines(prev.StationLines)
		}
	}
	m.events[e.ID] = next
	return nil
}

// keep mirrors COALESCE(NULLIF(new, ''), old)
func keep(old, fresh string) string {
	if fresh != "" {
		return fresh
	}
	return old
}

func fill(current, value string) string {
	if current == "" {
		return value
	}
	return current
}

func (m *MockStore) UpdateLocation(ctx context.Context, id string, u storage.LocationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateLocation"); err != nil {
		return err
	}
	e, ok := m.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	e.District = fill(e.District, u.District)
	e.Neighborhood = fill(e.Neighborhood, u.Neighborhood)
	e.StreetAddress = fill(e.StreetAddress, u.StreetAddress)
	e.Locality = fill(e.Locality, u.Locality)
	return nil
}

func (m *MockStore) UpdateTransit(ctx context.Context, id string, u storage.TransitUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateTransit"); err != nil {
		return err
	}
	e, ok := m.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if e.NearestStation == "" && u.NearestStation != "" {
		e.NearestStation = u.NearestStation
		e.StationLines = cloneLines(u.StationLines)
	}
	return nil
}

func (m *MockStore) UpdateImage(ctx context.Context, id string, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateImage"); err != nil {
		return err
	}
	e, ok := m.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	e.ImageURL = fill(e.ImageURL, imageURL)
	return nil
}

func (m *MockStore) DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteEndedBefore"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range m.events {
		if !e.EndTime.IsZero() && e.EndTime.Before(t) {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}

func (m *MockStore) sortedIDs() []string {
	ids := make([]string, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MockStore) ForEachCoordinates(ctx context.Context, fn func(storage.CoordinateRow) error) error {
	m.mu.Lock()
	if err := m.enter("ForEachCoordinates"); err != nil {
		m.mu.Unlock()
		return err
	}
	rows := make([]storage.CoordinateRow, 0, len(m.events))
	for _, id := range m.sortedIDs() {
		e := m.events[id]
		rows = append(rows, storage.CoordinateRow{
			ID:         id,
			Latitude:   cloneFloat(e.Latitude),
			Longitude:  cloneFloat(e.Longitude),
			DistanceKm: cloneFloat(e.DistanceKm),
		})
	}
	m.mu.Unlock()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockStore) BulkUpdateDistances(ctx context.Context, updates []storage.DistanceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("BulkUpdateDistances"); err != nil {
		return err
	}
	for _, u := range updates {
		if e, ok := m.events[u.ID]; ok {
			e.DistanceKm = cloneFloat(u.DistanceKm)
		}
	}
	return nil
}

func (m *MockStore) Search(ctx context.Context, query string, limit int) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Search"); err != nil {
		return nil, err
	}

	terms := storage.SearchTerms(query)
	results := []*models.Event{}
	if len(terms) == 0 {
		return results, nil
	}
	for _, id := range m.sortedIDs() {
		e := m.events[id]
		haystack := strings.ToLower(strings.Join([]string{
			e.Title, e.Description, e.District, e.Neighborhood, e.VenueName, e.OrganizationName,
		}, " "))
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if matched {
			results = append(results, cloneEvent(e))
		}
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

func (m *MockStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Count"); err != nil {
		return 0, err
	}
	return int64(len(m.events)), nil
}

func (m *MockStore) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enter("Health")
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enter("Close")
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneLines(lines []models.StationLine) []models.StationLine {
	if len(lines) == 0 {
		return nil
	}
	return append([]models.StationLine(nil), lines...)
}

func cloneEvent(e *models.Event) *models.Event {
	c := *e
	c.Latitude = cloneFloat(e.Latitude)
	c.Longitude = cloneFloat(e.Longitude)
	c.DistanceKm = cloneFloat(e.DistanceKm)
	c.StationLines = cloneLines(e.StationLines)
	if e.AudienceTags != nil {
		c.AudienceTags = append([]string(nil), e.AudienceTags...)
	}
	return &c
}
