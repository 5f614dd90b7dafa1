package movement

import (
	"fmt"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// routeWalker walks a fixed route's stops in cyclic order forever, asking the
// path oracle for the way to each next stop in turn. Speeds and waits come
// from the pause policy; the route itself carries no timing.
type routeWalker struct {
	route   *routes.Route
	stopMap routes.StopMap
	finder  PathFinder
	policy  PausePolicy

	// nextIndex is the cursor into the route's stops, always in [0, NrofStops)
	nextIndex int
	last      routes.Location
	hasLast   bool
}

// makeRouteWalker builds a routeWalker starting at firstStop.
// firstStop must be in range for the route; callers wanting random placement
// pick the index before constructing.
func makeRouteWalker(route *routes.Route,
	stopMap routes.StopMap,
	finder PathFinder,
	policy PausePolicy,
	firstStop int) (*routeWalker, error) {

	if route.NrofStops() == 0 {
		return nil, fmt.Errorf("route %s has no stops", route.RouteId)
	}
	if firstStop < 0 || firstStop >= route.NrofStops() {
		return nil, fmt.Errorf("too high first stop's index (%d) for route %s with only %d stops",
			firstStop, route.RouteId, route.NrofStops())
	}
	return &routeWalker{
		route:     route,
		stopMap:   stopMap,
		finder:    finder,
		policy:    policy,
		nextIndex: firstStop,
	}, nil
}

// nextStop returns the next stop in cyclic order and advances the cursor
func (w *routeWalker) nextStop() (string, routes.Location, error) {
	stopId := w.route.StopIds[w.nextIndex]
	location, present := w.stopMap[stopId]
	if !present {
		return "", routes.Location{}, fmt.Errorf("no location for stop %s on route %s",
			stopId, w.route.RouteId)
	}
	w.nextIndex++
	if w.nextIndex >= w.route.NrofStops() {
		w.nextIndex = 0
	}
	return stopId, location, nil
}

// nextWaitTime delegates to the pause policy, the route carries no timetable
func (w *routeWalker) nextWaitTime() WaitTime {
	return WaitTime{Seconds: w.policy.NextWait()}
}

// nextPath asks the oracle for the shortest path from the last known
// position to the next stop on the route. An empty oracle result between two
// distinct stops means the simulation map isn't fully connected, a
// configuration error rather than a condition to recover from.
func (w *routeWalker) nextPath() (PathResult, error) {
	from, err := w.initialLocation()
	if err != nil {
		return PathResult{}, err
	}
	stopId, to, err := w.nextStop()
	if err != nil {
		return PathResult{}, err
	}

	nodes, err := w.finder.ShortestPath(from, to)
	if err != nil {
		return PathResult{}, fmt.Errorf("no path to stop %s on route %s: %w",
			stopId, w.route.RouteId, err)
	}
	if len(nodes) == 0 && from != to {
		return PathResult{}, fmt.Errorf("no path from %v to stop %s: the simulation map isn't fully connected",
			from, stopId)
	}

	path := &Path{
		Waypoints: append([]routes.Location(nil), nodes...),
		Speed:     w.policy.NextSpeed(),
	}
	w.last = to
	return PathResult{Path: path}, nil
}

// initialLocation resolves the first stop on the route, consuming it from the cursor
func (w *routeWalker) initialLocation() (routes.Location, error) {
	if !w.hasLast {
		_, location, err := w.nextStop()
		if err != nil {
			return routes.Location{}, err
		}
		w.last = location
		w.hasLast = true
	}
	return w.last, nil
}

// lastLocation returns the last known position, false before movement has started
func (w *routeWalker) lastLocation() (routes.Location, bool) {
	return w.last, w.hasLast
}

// stops returns the locations of the full stop list for visualization
func (w *routeWalker) stops() []routes.Location {
	return w.stopMap.Locations(w.route.StopIds)
}

func (w *routeWalker) scheduled() bool {
	return false
}
