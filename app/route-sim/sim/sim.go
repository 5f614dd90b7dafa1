// Package sim runs the discrete event movement loop over a set of simulated
// entities, feeding each entity's RouteMovement the alternating wait time and
// path requests the movement contract requires, and publishing the results.
package sim

import (
	"container/heap"
	"fmt"
	"log"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/transitsimtools/routesim/business/movement"
)

// Entity pairs a simulated entity with its movement model
type Entity struct {
	Id       string
	Movement *movement.RouteMovement
}

// event is one scheduled path request for an entity
type event struct {
	at  float64
	seq int64 // tie-break so equal times pop in scheduling order
	ent *Entity
}

// eventQueue is a min-heap of events ordered by simulation time
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) {
	*q = append(*q, x.(*event))
}
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// RunMovementLoop drives every entity through its wait/path cycles until the
// simulation horizon, the last entity retires, or a shutdown signal arrives.
// Entities with NATS publishing enabled have each produced path published;
// statuses is kept current for the web service throughout.
func RunMovementLoop(log *log.Logger,
	clock *Clock,
	entities []*Entity,
	natsConnection *nats.Conn,
	statuses *StatusCollection,
	until float64,
	shutdownSignal chan os.Signal) error {

	var publisher *pathPublisher
	if natsConnection != nil {
		publisher = makePathPublisher(log, natsConnection)
	}

	queue := make(eventQueue, 0, len(entities))
	heap.Init(&queue)
	var seq int64

	schedule := func(ent *Entity) {
		wait := ent.Movement.NextWaitTime()
		if wait.Never {
			statuses.retire(ent.Id, clock.Now())
			return
		}
		at := clock.Now() + wait.Seconds
		if at < clock.Now() {
			// a negative wait means the entity is already due, go now
			at = clock.Now()
		}
		seq++
		heap.Push(&queue, &event{at: at, seq: seq, ent: ent})
	}

	for _, ent := range entities {
		location, err := ent.Movement.InitialLocation()
		if err != nil {
			return fmt.Errorf("placing entity %s: %w", ent.Id, err)
		}
		statuses.update(ent.Id, location, 0, clock.Now())
		schedule(ent)
	}

	pathCount := 0
	for queue.Len() > 0 {
		select {
		case <-shutdownSignal:
			log.Printf("Exiting movement loop on shutdown signal")
			return nil
		default:
		}

		next := heap.Pop(&queue).(*event)
		if next.at > until {
			log.Printf("simulation horizon %.0fs reached with %d entities still active",
				until, queue.Len()+1)
			break
		}
		clock.AdvanceTo(next.at)

		result, err := next.ent.Movement.NextPath()
		if err != nil {
			return fmt.Errorf("entity %s at t=%.0f: %w", next.ent.Id, clock.Now(), err)
		}
		if result.Exhausted {
			statuses.retire(next.ent.Id, clock.Now())
			continue
		}

		pathCount++
		waypoints := result.Path.Waypoints
		if len(waypoints) > 0 {
			statuses.update(next.ent.Id, waypoints[len(waypoints)-1], result.Path.Speed, clock.Now())
		}
		if publisher != nil {
			publisher.publish(&PathMessage{
				EntityId:       next.ent.Id,
				Time:           clock.Now(),
				Speed:          result.Path.Speed,
				DistanceMeters: result.Path.Distance(),
				Waypoints:      waypoints,
			})
		}

		schedule(next.ent)
	}

	log.Printf("movement loop produced %d paths, simulation time %.0fs", pathCount, clock.Now())
	return nil
}
