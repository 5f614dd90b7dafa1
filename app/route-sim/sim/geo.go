package sim

import (
	"math"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// metres of latitude per degree, close enough for feed display purposes
const metersPerDegree = 111320.0

// MapOrigin anchors the planar simulation map in geographic space so feeds
// that need latitude and longitude can be served from metre coordinates.
type MapOrigin struct {
	Lat float64
	Lon float64
}

// LatLon converts a map location in metres to latitude and longitude
// relative to the origin using an equirectangular approximation
func (o MapOrigin) LatLon(location routes.Location) (float64, float64) {
	lat := o.Lat + location.Y/metersPerDegree
	lon := o.Lon + location.X/(metersPerDegree*math.Cos(o.Lat*math.Pi/180))
	return lat, lon
}
