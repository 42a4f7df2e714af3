package testutil

import (
	"event-enricher/internal/models"
)

// Reference coordinates used across tests
var (
	PuertaDelSol = models.Coordinate{Lat: 40.416775, Lon: -3.703790}
	Retiro       = models.Coordinate{Lat: 40.415260, Lon: -3.684416}
	CondeDuque   = models.Coordinate{Lat: 40.427300, Lon: -3.710500}
)

// TestFixtures provides common test data
type TestFixtures struct {
	Events []*models.Event
}

// NewTestFixtures creates a new set of test fixtures
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{
		Events: []*models.Event{
			NewEventBuilder("1001").
				WithTitle("Cuentacuentos").
				WithCoordinates(Retiro.Lat, Retiro.Lon).
				WithVenue("Biblioteca Eugenio Trías (Retiro)").
				WithDetailLink("https://www.madrid.es/evento/1001").
				Build(),
			NewEventBuilder("1002").
				WithTitle("Concierto de jazz").
				WithCoordinates(CondeDuque.Lat, CondeDuque.Lon).
				WithDetailLink("https://www.madrid.es/evento/1002").
				Build(),
			NewEventBuilder("1003").
				WithTitle("Taller sin ubicación").
				WithDetailLink("https://www.madrid.es/evento/1003").
				Build(),
		},
	}
}
