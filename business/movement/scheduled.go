package movement

import (
	"fmt"
	"log"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// Timing carries the tuning constants the scheduled walker uses to keep
// derived speeds plausible. The defaults assume map positions in metres and
// simulation time in seconds.
type Timing struct {
	// FallbackSpeed in m/s substitutes the timetable when the planned
	// arrival is at or before the current simulation time, standing in for
	// typical vehicular speed.
	FallbackSpeed float64
	// MaxPlausibleSpeed in m/s is the ceiling above which a derived speed is
	// reported as a likely missing road segment between two stops.
	MaxPlausibleSpeed float64
	// MaxScheduleDrift in seconds bounds how far past a planned arrival the
	// simulation may run before the schedule is considered broken input.
	MaxScheduleDrift float64
}

// DefaultTiming returns the timing constants tuned for an urban map,
// 60 km/h fallback and 120 km/h ceiling
func DefaultTiming() Timing {
	return Timing{
		FallbackSpeed:     16.7,
		MaxPlausibleSpeed: 33.3,
		MaxScheduleDrift:  60,
	}
}

// scheduleWalker advances an entity through a vehicle timetable, deriving
// travel speed from the gap between each visit's planned arrival and the
// simulation clock. Its only mutable state is the cursor: the next trip and
// visit indices plus the marker of the stop the entity is physically at.
type scheduleWalker struct {
	log      *log.Logger
	schedule *routes.Schedule
	stopMap  routes.StopMap
	clock    Clock
	finder   PathFinder
	timing   Timing

	nextTripIndex int
	nextStopIndex int
	currStopId    string
	hasCurrStop   bool
	last          routes.Location
	hasLast       bool
}

func makeScheduleWalker(logger *log.Logger,
	schedule *routes.Schedule,
	stopMap routes.StopMap,
	finder PathFinder,
	clock Clock,
	timing Timing) (*scheduleWalker, error) {

	if len(schedule.Trips) == 0 {
		return nil, fmt.Errorf("schedule for vehicle %s has no trips", schedule.VehicleId)
	}
	for _, trip := range schedule.Trips {
		if len(trip.Visits) == 0 {
			return nil, fmt.Errorf("trip %s on schedule for vehicle %s has no visits",
				trip.TripId, schedule.VehicleId)
		}
	}
	return &scheduleWalker{
		log:      logger,
		schedule: schedule,
		stopMap:  stopMap,
		finder:   finder,
		clock:    clock,
		timing:   timing,
	}, nil
}

// passedLastStop returns true if the cursor has moved past the schedule's last trip
func (w *scheduleWalker) passedLastStop() bool {
	return w.nextTripIndex >= len(w.schedule.Trips)
}

// atLastStop returns true if the cursor is on the final visit of the final trip
func (w *scheduleWalker) atLastStop() bool {
	lastTrip := len(w.schedule.Trips) - 1
	return w.nextTripIndex == lastTrip &&
		w.nextStopIndex == len(w.schedule.Trips[lastTrip].Visits)-1
}

// shouldStartNextTrip returns true if the cursor is on the final visit of a
// trip that is not the schedule's last
func (w *scheduleWalker) shouldStartNextTrip() bool {
	if w.nextTripIndex == len(w.schedule.Trips)-1 {
		return false
	}
	return w.nextStopIndex == len(w.schedule.Trips[w.nextTripIndex].Visits)-1
}

// nextWaitTime returns the simulation seconds to wait before the next path
// request, advancing the cursor. The pre-departure wait is returned raw and
// may be negative when the simulation starts after the scheduled departure;
// mid-trip waits are floored at zero since a late simulation should simply
// move on rather than propagate an error.
func (w *scheduleWalker) nextWaitTime() WaitTime {
	now := w.clock.Now()
	switch {
	case w.passedLastStop():
		return WaitTime{Never: true}

	case w.atLastStop():
		w.nextTripIndex++
		return WaitTime{}

	case w.nextTripIndex == 0 && w.nextStopIndex == 0:
		first := w.schedule.Trips[0].Visits[0]
		w.currStopId = first.StopId
		w.hasCurrStop = true
		w.nextStopIndex++
		return WaitTime{Seconds: float64(first.DepartureTime) - now}

	case w.shouldStartNextTrip():
		visit := w.schedule.Trips[w.nextTripIndex].Visits[w.nextStopIndex]
		w.nextTripIndex++
		w.nextStopIndex = 0
		return WaitTime{Seconds: float64(visit.DepartureTime) - now}

	default:
		visit := w.schedule.Trips[w.nextTripIndex].Visits[w.nextStopIndex]
		w.nextStopIndex++
		wait := float64(visit.DepartureTime) - now
		if wait < 0 {
			wait = 0
		}
		return WaitTime{Seconds: wait}
	}
}

// nextPath builds the path from the current stop to the next scheduled
// visit, deriving speed from the remaining time budget. Exhaustion and a
// malformed visit index both report Exhausted without touching the cursor;
// an unresolved stop id or a disconnected map abort the run.
func (w *scheduleWalker) nextPath() (PathResult, error) {
	if w.passedLastStop() {
		return PathResult{Exhausted: true}, nil
	}
	trip := w.schedule.Trips[w.nextTripIndex]
	if w.nextStopIndex >= len(trip.Visits) {
		// bad input data rather than a broken invariant, degrade instead of aborting
		w.log.Printf("vehicle %s has no visit %d on trip %s, treating schedule as exhausted",
			w.schedule.VehicleId, w.nextStopIndex, trip.TripId)
		return PathResult{Exhausted: true}, nil
	}

	next := trip.Visits[w.nextStopIndex]
	to, present := w.stopMap[next.StopId]
	if !present {
		return PathResult{}, fmt.Errorf("no location for stop %s on trip %s of vehicle %s",
			next.StopId, trip.TripId, w.schedule.VehicleId)
	}
	from, present := w.stopMap[w.currStopId]
	if !w.hasCurrStop || !present {
		return PathResult{}, fmt.Errorf("vehicle %s has no resolvable current stop %q",
			w.schedule.VehicleId, w.currStopId)
	}

	nodes, err := w.finder.ShortestPath(from, to)
	if err != nil {
		return PathResult{}, fmt.Errorf("no path from stop %s to stop %s for vehicle %s: %w",
			w.currStopId, next.StopId, w.schedule.VehicleId, err)
	}
	if len(nodes) == 0 && from != to {
		return PathResult{}, fmt.Errorf("no path from stop %s to stop %s: the simulation map isn't fully connected",
			w.currStopId, next.StopId)
	}

	distance := TotalDistance(nodes)
	now := w.clock.Now()
	timeBudget := float64(next.ArrivalTime) - now
	if timeBudget <= 0 {
		if -timeBudget > w.timing.MaxScheduleDrift {
			return PathResult{}, fmt.Errorf("vehicle %s is %.0fs past the planned arrival at stop %s, schedule drift exceeds %.0fs",
				w.schedule.VehicleId, -timeBudget, next.StopId, w.timing.MaxScheduleDrift)
		}
		// stale timetable entry, substitute a physically derived estimate
		timeBudget = distance / w.timing.FallbackSpeed
	}
	var speed float64
	if distance == 0 && timeBudget == 0 {
		speed = 0 // entity stays put
	} else {
		speed = distance / timeBudget
	}
	if speed > w.timing.MaxPlausibleSpeed {
		w.log.Printf("speed %.1f km/h is required for vehicle %s between stop %s and stop %s, the map is likely missing a road segment",
			speed*3.6, w.schedule.VehicleId, w.currStopId, next.StopId)
	}

	path := &Path{
		Waypoints: append([]routes.Location(nil), nodes...),
		Speed:     speed,
	}
	w.currStopId = next.StopId
	w.last = to
	w.hasLast = true
	return PathResult{Path: path}, nil
}

// initialLocation resolves the first visit's stop of the first trip
func (w *scheduleWalker) initialLocation() (routes.Location, error) {
	stopId := w.schedule.Trips[0].Visits[0].StopId
	location, present := w.stopMap[stopId]
	if !present {
		return routes.Location{}, fmt.Errorf("no location for first stop %s of vehicle %s",
			stopId, w.schedule.VehicleId)
	}
	w.last = location
	w.hasLast = true
	return location, nil
}

// lastLocation returns the last known position, false before movement has started
func (w *scheduleWalker) lastLocation() (routes.Location, bool) {
	return w.last, w.hasLast
}

// stops translates the schedule's visit stop ids to locations for visualization
func (w *scheduleWalker) stops() []routes.Location {
	return w.stopMap.Locations(w.schedule.StopIds())
}

func (w *scheduleWalker) scheduled() bool {
	return true
}

// setSchedule swaps the timetable in place, keeping the cursor
func (w *scheduleWalker) setSchedule(schedule *routes.Schedule) {
	w.schedule = schedule
}
