package routes

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/transitsimtools/routesim/foundation/database"
)

// StopVisit is one scheduled visit on a trip: the stop and the planned
// arrival and departure in simulation seconds.
type StopVisit struct {
	TripId        string `db:"trip_id" json:"trip_id"`
	StopSequence  uint32 `db:"stop_sequence" json:"stop_sequence"`
	StopId        string `db:"stop_id" json:"stop_id"`
	ArrivalTime   int    `db:"arrival_time" json:"arrival_time"`
	DepartureTime int    `db:"departure_time" json:"departure_time"`
}

// Trip is one ordered run of stop visits by a vehicle.
// Visit times are assumed non-decreasing across the trip, not enforced.
type Trip struct {
	TripId string       `json:"trip_id"`
	Visits []*StopVisit `json:"visits"`
}

// Schedule is the full timetable for one vehicle: its trips in running order.
// Shared read-only between the entities representing the vehicle.
type Schedule struct {
	VehicleId    string  `json:"vehicle_id"`
	ServiceClass string  `json:"service_class"`
	Trips        []*Trip `json:"trips"`
}

// StopIds returns the stop ids the schedule visits in visiting order,
// collapsing consecutive repeats
func (s *Schedule) StopIds() []string {
	var ids []string
	for _, trip := range s.Trips {
		for _, visit := range trip.Visits {
			if len(ids) == 0 || ids[len(ids)-1] != visit.StopId {
				ids = append(ids, visit.StopId)
			}
		}
	}
	return ids
}

// scheduleTripRow joins a schedule's trip to its vehicle and service class
type scheduleTripRow struct {
	VehicleId    string `db:"vehicle_id"`
	ServiceClass string `db:"service_class"`
	TripSequence int    `db:"trip_sequence"`
	TripId       string `db:"trip_id"`
}

// GetSchedules loads all schedules for serviceClass with their trips and visits in running order.
// Schedules with no trips, and trips with no visits, are rejected as bad input data.
func GetSchedules(db *sqlx.DB, serviceClass string) ([]*Schedule, error) {
	tripRows, err := getScheduleTripRows(db, serviceClass)
	if err != nil {
		return nil, err
	}
	if len(tripRows) == 0 {
		return nil, nil
	}

	tripIds := make([]string, 0, len(tripRows))
	for _, row := range tripRows {
		tripIds = append(tripIds, row.TripId)
	}
	visitsByTripId, err := getStopVisits(db, tripIds)
	if err != nil {
		return nil, err
	}

	var results []*Schedule
	var current *Schedule
	for _, row := range tripRows {
		if current == nil || current.VehicleId != row.VehicleId {
			current = &Schedule{VehicleId: row.VehicleId, ServiceClass: row.ServiceClass}
			results = append(results, current)
		}
		visits, present := visitsByTripId[row.TripId]
		if !present {
			return nil, fmt.Errorf("found no scheduled visits for vehicle %s trip %s",
				row.VehicleId, row.TripId)
		}
		current.Trips = append(current.Trips, &Trip{TripId: row.TripId, Visits: visits})
	}
	return results, nil
}

func getScheduleTripRows(db *sqlx.DB, serviceClass string) ([]scheduleTripRow, error) {
	statementString := "select s.vehicle_id, s.service_class, st.trip_sequence, st.trip_id " +
		"from schedule s join schedule_trip st on st.vehicle_id = s.vehicle_id " +
		"where s.service_class = :service_class " +
		"order by s.vehicle_id, st.trip_sequence"
	rows, err := database.NamedQueryRows(statementString, db, map[string]interface{}{
		"service_class": serviceClass,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve schedule trips for service class %s: %w",
			serviceClass, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []scheduleTripRow
	for rows.Next() {
		row := scheduleTripRow{}
		if err = rows.StructScan(&row); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// getStopVisits collects StopVisits in visit order inside a map keyed by tripId
func getStopVisits(db *sqlx.DB, tripIds []string) (map[string][]*StopVisit, error) {
	statementString := "select trip_id, stop_sequence, stop_id, arrival_time, departure_time " +
		"from trip_visit where trip_id in (:trip_ids) " +
		"order by trip_id, stop_sequence"
	rows, err := database.NamedQueryRows(statementString, db, map[string]interface{}{
		"trip_ids": tripIds,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve visits from trip_visit table: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make(map[string][]*StopVisit)
	for rows.Next() {
		visit := StopVisit{}
		if err = rows.StructScan(&visit); err != nil {
			return nil, err
		}
		results[visit.TripId] = append(results[visit.TripId], &visit)
	}
	return results, rows.Err()
}
