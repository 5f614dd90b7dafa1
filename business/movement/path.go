// Package movement computes the paths simulated entities follow between
// stops and the simulation time they wait before requesting the next one.
// It supports two mutually exclusive disciplines: unscheduled movement that
// cycles a fixed route forever, and scheduled movement driven by a vehicle
// timetable. The shortest path search itself is consumed as an oracle
// through the PathFinder interface.
package movement

import "github.com/transitsimtools/routesim/business/data/routes"

// PathFinder is the shortest path oracle the walkers query for the node
// sequence between two map locations. The returned sequence is inclusive of
// both endpoints. An empty sequence between two distinct locations means the
// simulation map is not fully connected, which the walkers treat as fatal.
type PathFinder interface {
	ShortestPath(from, to routes.Location) ([]routes.Location, error)
}

// Clock is the read-only simulation time source, monotonically non-decreasing seconds
type Clock interface {
	Now() float64
}

// Path is the ordered waypoint sequence an entity follows at a single speed.
// It is a value consumed once by the simulation loop, then discarded.
type Path struct {
	Waypoints []routes.Location `json:"waypoints"`
	Speed     float64           `json:"speed"`
}

// Distance returns the total distance in metres along the path's waypoints
func (p *Path) Distance() float64 {
	return TotalDistance(p.Waypoints)
}

// WaitTime is the outcome of a wait time request. Never set means the walker
// is exhausted and will not produce further paths, so the caller should stop
// asking rather than interpret Seconds.
type WaitTime struct {
	Seconds float64
	Never   bool
}

// PathResult is the outcome of a path request. Exhausted set means no more
// paths will ever be produced; the walker's state is left untouched so
// repeated requests keep reporting exhaustion.
type PathResult struct {
	Path      *Path
	Exhausted bool
}

// TotalDistance returns the summed distance in metres between consecutive waypoints
func TotalDistance(waypoints []routes.Location) float64 {
	totalDistance := 0.0
	for i := 0; i < len(waypoints)-1; i++ {
		totalDistance += waypoints[i].DistanceTo(waypoints[i+1])
	}
	return totalDistance
}
