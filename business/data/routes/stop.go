// Package routes holds the immutable stop, route and schedule data the
// movement models walk over, and the loaders that read them from the database.
// Everything in this package is read-only after loading so it can be shared
// between entities.
package routes

import (
	"math"

	"github.com/jmoiron/sqlx"
)

// Location is a planar simulation map coordinate in metres.
type Location struct {
	X float64 `db:"x" json:"x"`
	Y float64 `db:"y" json:"y"`
}

// DistanceTo returns the euclidean distance to other in metres
func (l Location) DistanceTo(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Stop is a named waypoint on the simulation map that routes and schedules refer to
type Stop struct {
	StopId string  `db:"stop_id" json:"stop_id"`
	Name   string  `db:"name" json:"name"`
	X      float64 `db:"x" json:"x"`
	Y      float64 `db:"y" json:"y"`
}

// Location returns the stop's map location
func (s *Stop) Location() Location {
	return Location{X: s.X, Y: s.Y}
}

// StopMap resolves stop ids to map locations, constant after load
type StopMap map[string]Location

// MakeStopMap builds a StopMap from loaded stops
func MakeStopMap(stops []*Stop) StopMap {
	stopMap := make(StopMap, len(stops))
	for _, stop := range stops {
		stopMap[stop.StopId] = stop.Location()
	}
	return stopMap
}

// Locations translates stop ids to locations through the map, skipping ids
// the map can't resolve. Intended for bookkeeping and visualization where a
// partial list is preferable to none.
func (m StopMap) Locations(ids []string) []Location {
	locations := make([]Location, 0, len(ids))
	for _, id := range ids {
		if location, present := m[id]; present {
			locations = append(locations, location)
		}
	}
	return locations
}

// GetStops loads all stops
func GetStops(db *sqlx.DB) ([]*Stop, error) {
	var stops []*Stop
	err := db.Select(&stops, "select stop_id, name, x, y from stop order by stop_id")
	if err != nil {
		return nil, err
	}
	return stops, nil
}
