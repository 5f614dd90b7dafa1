package sim

import "github.com/transitsimtools/routesim/business/data/routes"

// StraightPathFinder is the fallback shortest path oracle used when no road
// network router is attached to the simulation: the path between two
// positions is the direct segment between them.
type StraightPathFinder struct{}

// ShortestPath implements movement.PathFinder
func (StraightPathFinder) ShortestPath(from, to routes.Location) ([]routes.Location, error) {
	if from == to {
		return []routes.Location{from}, nil
	}
	return []routes.Location{from, to}, nil
}
