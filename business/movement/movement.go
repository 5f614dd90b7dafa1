package movement

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// pathSource is the capability both walker kinds provide to the façade, so
// mode never needs to be re-checked per call.
type pathSource interface {
	nextWaitTime() WaitTime
	nextPath() (PathResult, error)
	initialLocation() (routes.Location, error)
	lastLocation() (routes.Location, bool)
	stops() []routes.Location
	scheduled() bool
}

// Catalog owns the shared route list for unscheduled movement and the
// round-robin counter that hands routes to replicated instances in order.
// The counter lives here rather than in any package state so independent
// catalogs never interfere. Not safe for concurrent replication.
type Catalog struct {
	routes    []*routes.Route
	stopMap   routes.StopMap
	nextRoute int
}

// MakeCatalog builds a Catalog over the shared route list
func MakeCatalog(allRoutes []*routes.Route, stopMap routes.StopMap) (*Catalog, error) {
	if len(allRoutes) == 0 {
		return nil, fmt.Errorf("catalog needs at least one route")
	}
	for _, route := range allRoutes {
		if route.NrofStops() == 0 {
			return nil, fmt.Errorf("route %s has no stops", route.RouteId)
		}
	}
	return &Catalog{routes: allRoutes, stopMap: stopMap}, nil
}

// take returns the next route in round-robin order and advances the counter
func (c *Catalog) take() *routes.Route {
	route := c.routes[c.nextRoute]
	c.nextRoute++
	if c.nextRoute >= len(c.routes) {
		c.nextRoute = 0
	}
	return route
}

// RouteMovement is the entity-facing movement model. It is constructed in
// one of two modes fixed for its lifetime and exposes path and wait time
// requests to the simulation loop. A prototype instance is replicated once
// per simulated entity; replicas share the catalog, schedule, stop map and
// oracle by reference and own only their cursor.
type RouteMovement struct {
	log    *log.Logger
	source pathSource

	// replication parameters
	catalog   *Catalog
	finder    PathFinder
	policy    PausePolicy
	firstStop int
	rng       *rand.Rand

	schedule *routes.Schedule
	stopMap  routes.StopMap
	clock    Clock
	timing   Timing

	initial    routes.Location
	hasInitial bool
}

// NewUnscheduled builds a prototype RouteMovement cycling the catalog's
// routes. firstStop fixes each replica's starting stop index; a negative
// value selects a random index per replica using rng. A configured index out
// of range for the catalog's routes is a construction error.
func NewUnscheduled(logger *log.Logger,
	catalog *Catalog,
	finder PathFinder,
	policy PausePolicy,
	firstStop int,
	rng *rand.Rand) (*RouteMovement, error) {

	prototypeRoute := catalog.routes[0]
	if firstStop >= prototypeRoute.NrofStops() {
		return nil, fmt.Errorf("too high first stop's index (%d) for route %s with only %d stops",
			firstStop, prototypeRoute.RouteId, prototypeRoute.NrofStops())
	}
	walker, err := makeRouteWalker(prototypeRoute, catalog.stopMap, finder, policy, startIndex(firstStop, prototypeRoute, rng))
	if err != nil {
		return nil, err
	}
	return &RouteMovement{
		log:       logger,
		source:    walker,
		catalog:   catalog,
		finder:    finder,
		policy:    policy,
		firstStop: firstStop,
		rng:       rng,
	}, nil
}

// NewScheduled builds a RouteMovement following one vehicle's timetable.
// The schedule and stop map are shared read-only; only the cursor is owned.
func NewScheduled(logger *log.Logger,
	schedule *routes.Schedule,
	stopMap routes.StopMap,
	finder PathFinder,
	clock Clock,
	timing Timing) (*RouteMovement, error) {

	walker, err := makeScheduleWalker(logger, schedule, stopMap, finder, clock, timing)
	if err != nil {
		return nil, err
	}
	return &RouteMovement{
		log:      logger,
		source:   walker,
		finder:   finder,
		schedule: schedule,
		stopMap:  stopMap,
		clock:    clock,
		timing:   timing,
	}, nil
}

// startIndex resolves the configured first stop index, picking a random stop
// excluding the route's last when none is configured
func startIndex(firstStop int, route *routes.Route, rng *rand.Rand) int {
	if firstStop >= 0 {
		return firstStop
	}
	if route.NrofStops() <= 1 {
		return 0
	}
	return rng.Intn(route.NrofStops() - 1)
}

// Replicate yields a new instance for the next simulated entity. In
// unscheduled mode the replica receives the catalog's next route in
// round-robin order with a fresh cursor; in scheduled mode it follows the
// same vehicle schedule from the start, schedules are not rotated.
func (m *RouteMovement) Replicate() (*RouteMovement, error) {
	if m.source.scheduled() {
		return NewScheduled(m.log, m.schedule, m.stopMap, m.finder, m.clock, m.timing)
	}
	route := m.catalog.take()
	if m.firstStop >= route.NrofStops() {
		return nil, fmt.Errorf("too high first stop's index (%d) for route %s with only %d stops",
			m.firstStop, route.RouteId, route.NrofStops())
	}
	walker, err := makeRouteWalker(route, m.catalog.stopMap, m.finder, m.policy, startIndex(m.firstStop, route, m.rng))
	if err != nil {
		return nil, err
	}
	return &RouteMovement{
		log:       m.log,
		source:    walker,
		catalog:   m.catalog,
		finder:    m.finder,
		policy:    m.policy,
		firstStop: m.firstStop,
		rng:       m.rng,
	}, nil
}

// InitialLocation resolves and caches the entity's starting position without
// consuming a wait/path cycle
func (m *RouteMovement) InitialLocation() (routes.Location, error) {
	if !m.hasInitial {
		location, err := m.source.initialLocation()
		if err != nil {
			return routes.Location{}, err
		}
		m.initial = location
		m.hasInitial = true
	}
	return m.initial, nil
}

// LastLocation returns the entity's last known position, false if movement
// has not started
func (m *RouteMovement) LastLocation() (routes.Location, bool) {
	return m.source.lastLocation()
}

// NextWaitTime returns the simulation time to wait before the next NextPath call
func (m *RouteMovement) NextWaitTime() WaitTime {
	return m.source.nextWaitTime()
}

// NextPath returns the entity's next path, or an exhausted result when the
// schedule has run out
func (m *RouteMovement) NextPath() (PathResult, error) {
	return m.source.nextPath()
}

// Stops returns the ordered stop locations the entity will visit
func (m *RouteMovement) Stops() []routes.Location {
	return m.source.stops()
}

// Scheduled reports whether the instance follows a timetable
func (m *RouteMovement) Scheduled() bool {
	return m.source.scheduled()
}

// SetSchedule swaps the timetable of a scheduled instance; no-op in
// unscheduled mode
func (m *RouteMovement) SetSchedule(schedule *routes.Schedule) {
	if walker, ok := m.source.(*scheduleWalker); ok {
		walker.setSchedule(schedule)
		m.schedule = schedule
	}
}
