package sim

import (
	"math"
	"testing"

	"github.com/matryer/is"

	"github.com/transitsimtools/routesim/business/data/routes"
)

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func Test_MapOrigin_LatLon(t *testing.T) {
	is := is.New(t)
	origin := MapOrigin{Lat: 45.0, Lon: -122.0}

	lat, lon := origin.LatLon(routes.Location{X: 0, Y: 0})
	is.Equal(lat, 45.0)
	is.Equal(lon, -122.0)

	// one degree of latitude north
	lat, _ = origin.LatLon(routes.Location{X: 0, Y: metersPerDegree})
	is.True(closeEnough(lat, 46.0))

	// a degree of longitude shrinks with latitude
	_, lon = origin.LatLon(routes.Location{X: metersPerDegree * math.Cos(45.0*math.Pi/180), Y: 0})
	is.True(closeEnough(lon, -121.0))
}

func Test_buildVehiclePositionFeed(t *testing.T) {
	is := is.New(t)
	origin := MapOrigin{Lat: 45.0, Lon: -122.0}
	statuses := []EntityStatus{
		{EntityId: "entity-1", Location: routes.Location{X: 0, Y: 0}, Speed: 10, UpdatedAt: 100},
		{EntityId: "entity-2", Location: routes.Location{X: 500, Y: 500}, Retired: true},
	}

	feedMessage := buildVehiclePositionFeed(statuses, origin, 1650000000)

	is.Equal(*feedMessage.Header.GtfsRealtimeVersion, "2.0")
	is.Equal(*feedMessage.Header.Timestamp, uint64(1650000000))
	// retired entities are left out of the feed
	is.Equal(len(feedMessage.Entity), 1)

	entity := feedMessage.Entity[0]
	is.Equal(*entity.Id, "entity-1")
	is.Equal(*entity.Vehicle.Vehicle.Id, "entity-1")
	is.Equal(*entity.Vehicle.Position.Latitude, float32(45.0))
	is.Equal(*entity.Vehicle.Position.Longitude, float32(-122.0))
	is.Equal(*entity.Vehicle.Position.Speed, float32(10))
	is.Equal(*entity.Vehicle.Timestamp, uint64(1650000000))
}
