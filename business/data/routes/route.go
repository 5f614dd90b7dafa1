package routes

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Route is an ordered cyclic sequence of stops walked by unscheduled entities.
// A route is owned by the shared catalog and never mutated after load; each
// entity keeps its own cursor into it.
type Route struct {
	RouteId string   `json:"route_id"`
	StopIds []string `json:"stop_ids"`
}

// NrofStops returns the number of stops on the route
func (r *Route) NrofStops() int {
	return len(r.StopIds)
}

// routeStopRow is one row from the route_stop table
type routeStopRow struct {
	RouteId      string `db:"route_id"`
	StopSequence int    `db:"stop_sequence"`
	StopId       string `db:"stop_id"`
}

// GetRoutes loads all routes with their ordered stop lists.
// Returns an error if no routes exist or any route has no stops, an empty
// route can't be walked and indicates bad input data.
func GetRoutes(db *sqlx.DB) ([]*Route, error) {
	statementString := "select route_id, stop_sequence, stop_id from route_stop " +
		"order by route_id, stop_sequence"

	var rows []routeStopRow
	err := db.Select(&rows, statementString)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve route stops from route_stop table: %w", err)
	}

	var results []*Route
	var current *Route
	for _, row := range rows {
		if current == nil || current.RouteId != row.RouteId {
			current = &Route{RouteId: row.RouteId}
			results = append(results, current)
		}
		current.StopIds = append(current.StopIds, row.StopId)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no routes found in route_stop table")
	}
	return results, nil
}
