package sim

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/transitsimtools/routesim/business/data/routes"
)

// subject produced paths are published on
const pathSubject = "route-sim-paths"

// PathMessage is the JSON shape published for each path an entity starts to follow
type PathMessage struct {
	EntityId       string            `json:"entity_id"`
	Time           float64           `json:"time"`
	Speed          float64           `json:"speed"`
	DistanceMeters float64           `json:"distance_meters"`
	Waypoints      []routes.Location `json:"waypoints"`
}

// pathPublisher sends produced paths to NATS for downstream consumers such
// as visualization
type pathPublisher struct {
	log            *log.Logger
	natsConnection *nats.Conn
}

// makePathPublisher creates pathPublisher
func makePathPublisher(log *log.Logger, natsConnection *nats.Conn) *pathPublisher {
	return &pathPublisher{
		log:            log,
		natsConnection: natsConnection,
	}
}

// publish sends msg over NATS, publish failures are logged rather than
// stopping the simulation
func (p *pathPublisher) publish(msg *PathMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		p.log.Printf("failed to marshal PathMessage for entity %s, error:%v", msg.EntityId, err)
		return
	}
	if err = p.natsConnection.Publish(pathSubject, jsonData); err != nil {
		p.log.Printf("failed to send PathMessage for entity %s, error:%v", msg.EntityId, err)
	}
}
