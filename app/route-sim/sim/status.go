package sim

import (
	"sort"
	"sync"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// EntityStatus is the last published state of one simulated entity
type EntityStatus struct {
	EntityId  string          `json:"entity_id"`
	Location  routes.Location `json:"location"`
	Speed     float64         `json:"speed"`
	UpdatedAt float64         `json:"updated_at"`
	Retired   bool            `json:"retired"`
}

// StatusCollection holds entity snapshots for the web service. The movement
// loop writes, http handlers read, so access is guarded.
type StatusCollection struct {
	mutex    sync.Mutex
	statuses map[string]*EntityStatus
}

// NewStatusCollection creates an empty StatusCollection
func NewStatusCollection() *StatusCollection {
	return &StatusCollection{statuses: make(map[string]*EntityStatus)}
}

// update records the entity's new position and speed at simulation time at
func (s *StatusCollection) update(entityId string, location routes.Location, speed float64, at float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.statuses[entityId] = &EntityStatus{
		EntityId:  entityId,
		Location:  location,
		Speed:     speed,
		UpdatedAt: at,
	}
}

// retire marks the entity as producing no further movement
func (s *StatusCollection) retire(entityId string, at float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if status, present := s.statuses[entityId]; present {
		status.Retired = true
		status.Speed = 0
		status.UpdatedAt = at
	} else {
		s.statuses[entityId] = &EntityStatus{EntityId: entityId, Retired: true, UpdatedAt: at}
	}
}

// list returns a stable snapshot of all entity statuses
func (s *StatusCollection) list() []EntityStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	results := make([]EntityStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		results = append(results, *status)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].EntityId < results[j].EntityId
	})
	return results
}
