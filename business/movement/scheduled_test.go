package movement

import (
	"bytes"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// fakeClock is a settable simulation clock for tests
type fakeClock struct {
	now float64
}

func (c *fakeClock) Now() float64 {
	return c.now
}

// linePathFinder returns the straight segment between the two locations
type linePathFinder struct{}

func (linePathFinder) ShortestPath(from, to routes.Location) ([]routes.Location, error) {
	if from == to {
		return []routes.Location{from}, nil
	}
	return []routes.Location{from, to}, nil
}

// disconnectedPathFinder simulates a map with no connection between stops
type disconnectedPathFinder struct{}

func (disconnectedPathFinder) ShortestPath(_, _ routes.Location) ([]routes.Location, error) {
	return nil, nil
}

var testStopMap = routes.StopMap{
	"A": {X: 0, Y: 0},
	"B": {X: 1000, Y: 0},
	"C": {X: 1000, Y: 1000},
	"D": {X: 0, Y: 1000},
}

func singleTripSchedule() *routes.Schedule {
	return &routes.Schedule{
		VehicleId: "veh-1",
		Trips: []*routes.Trip{
			{
				TripId: "t1",
				Visits: []*routes.StopVisit{
					{TripId: "t1", StopSequence: 1, StopId: "A", ArrivalTime: 0, DepartureTime: 0},
					{TripId: "t1", StopSequence: 2, StopId: "B", ArrivalTime: 100, DepartureTime: 100},
				},
			},
		},
	}
}

func twoTripSchedule() *routes.Schedule {
	return &routes.Schedule{
		VehicleId: "veh-2",
		Trips: []*routes.Trip{
			{
				TripId: "t1",
				Visits: []*routes.StopVisit{
					{TripId: "t1", StopSequence: 1, StopId: "A", ArrivalTime: 0, DepartureTime: 10},
					{TripId: "t1", StopSequence: 2, StopId: "B", ArrivalTime: 100, DepartureTime: 120},
				},
			},
			{
				TripId: "t2",
				Visits: []*routes.StopVisit{
					{TripId: "t2", StopSequence: 1, StopId: "C", ArrivalTime: 200, DepartureTime: 220},
					{TripId: "t2", StopSequence: 2, StopId: "D", ArrivalTime: 300, DepartureTime: 300},
				},
			},
		},
	}
}

func testScheduleWalker(t *testing.T, schedule *routes.Schedule, clock Clock) (*scheduleWalker, *bytes.Buffer) {
	t.Helper()
	var logged bytes.Buffer
	logger := log.New(&logged, "", 0)
	walker, err := makeScheduleWalker(logger, schedule, testStopMap, linePathFinder{}, clock, DefaultTiming())
	if err != nil {
		t.Fatalf("makeScheduleWalker() error: %v", err)
	}
	return walker, &logged
}

func TestScheduleWalker_PreDepartureWait(t *testing.T) {
	tests := []struct {
		name          string
		departureTime int
		clockAt       float64
		want          float64
	}{
		{
			name:          "clock before departure",
			departureTime: 50,
			clockAt:       20,
			want:          30,
		},
		{
			name:          "clock at departure",
			departureTime: 0,
			clockAt:       0,
			want:          0,
		},
		{
			name:          "clock after departure returns raw negative wait",
			departureTime: 0,
			clockAt:       150,
			want:          -150,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := singleTripSchedule()
			schedule.Trips[0].Visits[0].DepartureTime = tt.departureTime
			walker, _ := testScheduleWalker(t, schedule, &fakeClock{now: tt.clockAt})

			got := walker.nextWaitTime()
			if got.Never {
				t.Fatalf("nextWaitTime() = Never, want %v seconds", tt.want)
			}
			if got.Seconds != tt.want {
				t.Errorf("nextWaitTime() = %v, want %v", got.Seconds, tt.want)
			}
			if walker.nextTripIndex != 0 || walker.nextStopIndex != 1 {
				t.Errorf("cursor after pre-departure = (%d,%d), want (0,1)",
					walker.nextTripIndex, walker.nextStopIndex)
			}
		})
	}
}

func TestScheduleWalker_PreDepartureDoesNotRepeat(t *testing.T) {
	is := is.New(t)
	walker, _ := testScheduleWalker(t, singleTripSchedule(), &fakeClock{now: 0})

	first := walker.nextWaitTime()
	is.Equal(first.Seconds, 0.0) // first call hits the pre-departure branch

	// the next call is at the final visit of the final trip, not pre-departure again
	second := walker.nextWaitTime()
	is.Equal(second.Seconds, 0.0)
	is.Equal(walker.nextTripIndex, 1) // cursor moved past the schedule

	third := walker.nextWaitTime()
	is.True(third.Never)
}

func TestScheduleWalker_MidTripWaitClampedAtZero(t *testing.T) {
	clock := &fakeClock{now: 0}
	walker, _ := testScheduleWalker(t, twoTripSchedule(), clock)

	walker.nextWaitTime() // pre-departure, cursor to (0,1)

	// the simulation is running late relative to the timetable
	clock.now = 500
	walker.nextTripIndex = 1
	walker.nextStopIndex = 0
	got := walker.nextWaitTime()
	if got.Never || got.Seconds != 0 {
		t.Errorf("late mid-trip nextWaitTime() = %+v, want clamped 0", got)
	}
}

func TestScheduleWalker_TripRollover(t *testing.T) {
	is := is.New(t)
	clock := &fakeClock{now: 0}
	walker, _ := testScheduleWalker(t, twoTripSchedule(), clock)

	wait := walker.nextWaitTime() // pre-departure
	is.Equal(wait.Seconds, 10.0)

	// cursor at the final visit of trip t1, which is not the schedule's last trip
	clock.now = 100
	wait = walker.nextWaitTime()
	is.Equal(wait.Seconds, 20.0) // departure 120 - clock 100
	is.Equal(walker.nextTripIndex, 1)
	is.Equal(walker.nextStopIndex, 0)
}

func TestScheduleWalker_FinishedScheduleIsIdempotent(t *testing.T) {
	walker, _ := testScheduleWalker(t, singleTripSchedule(), &fakeClock{now: 0})
	walker.nextTripIndex = len(walker.schedule.Trips)

	for i := 0; i < 3; i++ {
		wait := walker.nextWaitTime()
		if !wait.Never {
			t.Fatalf("call %d: nextWaitTime() = %+v, want Never", i, wait)
		}
		result, err := walker.nextPath()
		if err != nil {
			t.Fatalf("call %d: nextPath() error: %v", i, err)
		}
		if !result.Exhausted {
			t.Fatalf("call %d: nextPath() = %+v, want Exhausted", i, result)
		}
	}
}

func TestScheduleWalker_PathSpeedFromTimeBudget(t *testing.T) {
	is := is.New(t)
	clock := &fakeClock{now: 0}
	walker, _ := testScheduleWalker(t, singleTripSchedule(), clock)

	wait := walker.nextWaitTime()
	is.Equal(wait.Seconds, 0.0)

	result, err := walker.nextPath()
	is.NoErr(err)
	is.True(result.Path != nil)

	// distance A to B is 1000m, planned arrival at t=100
	is.Equal(result.Path.Speed, 10.0)
	is.Equal(result.Path.Distance(), 1000.0)
	is.Equal(walker.currStopId, "B") // marker moved to the visit just reached
}

func TestScheduleWalker_LateRequestFallsBackToUrbanSpeed(t *testing.T) {
	is := is.New(t)
	clock := &fakeClock{now: 150}
	walker, _ := testScheduleWalker(t, singleTripSchedule(), clock)

	wait := walker.nextWaitTime()
	is.Equal(wait.Seconds, -150.0) // raw negative pre-departure wait

	result, err := walker.nextPath()
	is.NoErr(err)
	is.True(result.Path != nil)
	// time budget is -50s, substituted by distance/FallbackSpeed so the
	// derived speed lands back on the fallback
	is.True(math.Abs(result.Path.Speed-DefaultTiming().FallbackSpeed) < 1e-9)
}

func TestScheduleWalker_ZeroDistanceZeroBudget(t *testing.T) {
	schedule := &routes.Schedule{
		VehicleId: "veh-3",
		Trips: []*routes.Trip{
			{
				TripId: "t1",
				Visits: []*routes.StopVisit{
					{TripId: "t1", StopSequence: 1, StopId: "A", ArrivalTime: 0, DepartureTime: 0},
					{TripId: "t1", StopSequence: 2, StopId: "A", ArrivalTime: 10, DepartureTime: 10},
				},
			},
		},
	}
	clock := &fakeClock{now: 10}
	walker, _ := testScheduleWalker(t, schedule, clock)

	walker.nextWaitTime()
	result, err := walker.nextPath()
	if err != nil {
		t.Fatalf("nextPath() error: %v", err)
	}
	if result.Path == nil || result.Path.Speed != 0 {
		t.Errorf("nextPath() = %+v, want zero speed when the entity stays put", result.Path)
	}
}

func TestScheduleWalker_ImplausibleSpeedIsReportedNotFatal(t *testing.T) {
	schedule := singleTripSchedule()
	// 1000m in one second requires 1000 m/s, well past the ceiling
	schedule.Trips[0].Visits[1].ArrivalTime = 1
	walker, logged := testScheduleWalker(t, schedule, &fakeClock{now: 0})

	walker.nextWaitTime()
	result, err := walker.nextPath()
	if err != nil {
		t.Fatalf("nextPath() error: %v", err)
	}
	if result.Path == nil {
		t.Fatal("nextPath() returned no path, the path should still be returned")
	}
	if !strings.Contains(logged.String(), "missing a road segment") {
		t.Errorf("expected a missing road segment diagnostic, got log: %q", logged.String())
	}
}

func TestScheduleWalker_MalformedVisitIndexDegrades(t *testing.T) {
	walker, logged := testScheduleWalker(t, singleTripSchedule(), &fakeClock{now: 0})
	walker.nextWaitTime()
	walker.nextStopIndex = 10

	result, err := walker.nextPath()
	if err != nil {
		t.Fatalf("nextPath() error: %v, malformed schedules must degrade", err)
	}
	if !result.Exhausted {
		t.Errorf("nextPath() = %+v, want Exhausted for a malformed visit index", result)
	}
	if walker.nextStopIndex != 10 || walker.nextTripIndex != 0 {
		t.Errorf("cursor moved on a degraded request: (%d,%d)",
			walker.nextTripIndex, walker.nextStopIndex)
	}
	if logged.Len() == 0 {
		t.Error("expected the malformed schedule to be logged")
	}
}

func TestScheduleWalker_UnresolvedStopIsFatal(t *testing.T) {
	schedule := singleTripSchedule()
	schedule.Trips[0].Visits[1].StopId = "nowhere"
	walker, _ := testScheduleWalker(t, schedule, &fakeClock{now: 0})

	walker.nextWaitTime()
	_, err := walker.nextPath()
	if err == nil {
		t.Fatal("nextPath() should fail for an unresolved stop id")
	}
}

func TestScheduleWalker_ExcessiveDriftIsFatal(t *testing.T) {
	clock := &fakeClock{now: 500}
	walker, _ := testScheduleWalker(t, singleTripSchedule(), clock)

	walker.nextWaitTime()
	_, err := walker.nextPath()
	if err == nil {
		t.Fatal("nextPath() should fail when schedule drift exceeds the sane bound")
	}
}

func TestScheduleWalker_DisconnectedMapIsFatal(t *testing.T) {
	var logged bytes.Buffer
	walker, err := makeScheduleWalker(log.New(&logged, "", 0), singleTripSchedule(),
		testStopMap, disconnectedPathFinder{}, &fakeClock{now: 0}, DefaultTiming())
	if err != nil {
		t.Fatalf("makeScheduleWalker() error: %v", err)
	}

	walker.nextWaitTime()
	_, err = walker.nextPath()
	if err == nil {
		t.Fatal("nextPath() should fail on a disconnected map")
	}
}

func TestScheduleWalker_InitialLocation(t *testing.T) {
	is := is.New(t)
	walker, _ := testScheduleWalker(t, singleTripSchedule(), &fakeClock{now: 0})

	_, started := walker.lastLocation()
	is.True(!started) // no position before movement starts

	location, err := walker.initialLocation()
	is.NoErr(err)
	is.Equal(location, testStopMap["A"])

	last, started := walker.lastLocation()
	is.True(started)
	is.Equal(last, testStopMap["A"])
}

func TestScheduleWalker_StopsTranslation(t *testing.T) {
	is := is.New(t)
	walker, _ := testScheduleWalker(t, twoTripSchedule(), &fakeClock{now: 0})

	stops := walker.stops()
	is.Equal(stops, []routes.Location{
		testStopMap["A"], testStopMap["B"], testStopMap["C"], testStopMap["D"],
	})
}

func TestScheduleWalker_RejectsEmptySchedules(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)
	tests := []struct {
		name     string
		schedule *routes.Schedule
	}{
		{
			name:     "no trips",
			schedule: &routes.Schedule{VehicleId: "veh-e"},
		},
		{
			name: "trip without visits",
			schedule: &routes.Schedule{
				VehicleId: "veh-e",
				Trips:     []*routes.Trip{{TripId: "t1"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := makeScheduleWalker(logger, tt.schedule, testStopMap,
				linePathFinder{}, &fakeClock{}, DefaultTiming())
			if err == nil {
				t.Error("makeScheduleWalker() should reject the schedule")
			}
		})
	}
}
