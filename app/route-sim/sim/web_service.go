package sim

import (
	"context"
	"encoding/json"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/gorilla/mux"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// entityStatusHandler serves current entity positions
type entityStatusHandler struct {
	log      *logger.Logger
	statuses *StatusCollection
	origin   MapOrigin
}

// makeEntityStatusHandler creates entityStatusHandler
func makeEntityStatusHandler(log *logger.Logger, statuses *StatusCollection, origin MapOrigin) *entityStatusHandler {
	return &entityStatusHandler{
		log:      log,
		statuses: statuses,
		origin:   origin,
	}
}

// ServeHTTP implements entityStatusHandler's http.Handler interface,
// answering GTFS-RT protocol buffers by default, prototext with ?text=true
// and plain JSON with ?json=true
func (h *entityStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	asText := strings.ToLower(r.FormValue("text")) == "true"
	asJson := strings.ToLower(r.FormValue("json")) == "true"
	if asJson {
		h.serveJSON(w)
	} else {
		h.serveGTFSRT(asText, w)
	}
}

// JsonEntityStatusResponseWrapper provides the json response wrapper around entity statuses
type JsonEntityStatusResponseWrapper struct {
	Timestamp uint64         `json:"timestamp"`
	Entities  []EntityStatus `json:"entities"`
}

// serveJSON sends all entity statuses as json
func (h *entityStatusHandler) serveJSON(w http.ResponseWriter) {
	jsonWrapper := JsonEntityStatusResponseWrapper{
		Timestamp: uint64(time.Now().Unix()),
		Entities:  h.statuses.list(),
	}
	jsonData, err := json.Marshal(jsonWrapper)
	if err != nil {
		h.log.Printf("Error marshaling entity statuses to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	byteCount, err := w.Write(jsonData)
	if err != nil {
		h.log.Printf("Error writing json response: %s", err)
		return
	}
	h.log.Printf("wrote %d bytes in json response.", byteCount)
}

// serveGTFSRT sends entity positions in google protocol buffer format, or as text if asText is true
func (h *entityStatusHandler) serveGTFSRT(asText bool, w http.ResponseWriter) {
	feedMessage := buildVehiclePositionFeed(h.statuses.list(), h.origin, uint64(time.Now().Unix()))

	if asText {
		stringResponse := prototext.MarshalOptions{Multiline: true}.Format(feedMessage)
		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write([]byte(stringResponse)); err != nil {
			h.log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
			http.Error(w, "Error serving request", http.StatusInternalServerError)
		}
		return
	}

	bytes, err := proto.Marshal(feedMessage)
	if err != nil {
		h.log.Printf("Failed to marshal gtfsrt.FeedMessage to bytes, error:%s", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/grtfeed")
	bytesWritten, err := w.Write(bytes)
	if err != nil {
		h.log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
		return
	}
	h.log.Printf("wrote %d bytes for grtfeed", bytesWritten)
}

// buildVehiclePositionFeed builds a GTFS-RT FeedMessage with one vehicle
// position per non-retired entity, converting map metres to lat/lon around origin
func buildVehiclePositionFeed(statuses []EntityStatus, origin MapOrigin, now uint64) *gtfsrt.FeedMessage {
	gtfsRealtimeVersion := "2.0"
	incrementality := gtfsrt.FeedHeader_FULL_DATASET
	feedMessage := gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: &gtfsRealtimeVersion,
			Incrementality:      &incrementality,
			Timestamp:           &now,
		},
		Entity: []*gtfsrt.FeedEntity{},
	}
	for i := range statuses {
		status := statuses[i]
		if status.Retired {
			continue
		}
		lat, lon := origin.LatLon(status.Location)
		lat32 := float32(lat)
		lon32 := float32(lon)
		speed32 := float32(status.Speed)
		entityId := status.EntityId
		feedMessage.Entity = append(feedMessage.Entity, &gtfsrt.FeedEntity{
			Id: &entityId,
			Vehicle: &gtfsrt.VehiclePosition{
				Vehicle: &gtfsrt.VehicleDescriptor{
					Id: &entityId,
				},
				Position: &gtfsrt.Position{
					Latitude:  &lat32,
					Longitude: &lon32,
					Speed:     &speed32,
				},
				Timestamp: &now,
			},
		})
	}
	return &feedMessage
}

// createServer creates configured http.Server for serving simulation status
func createServer(log *logger.Logger,
	statuses *StatusCollection,
	origin MapOrigin,
	httpPort int) *http.Server {

	statusHandler := makeEntityStatusHandler(log, statuses, origin)

	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/vehiclePositions", statusHandler)
	r.HandleFunc("/entities", func(w http.ResponseWriter, _ *http.Request) {
		statusHandler.serveJSON(w)
	})
	srv := &http.Server{
		Addr: strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
	return srv
}

// RunWebService starts up the simulation status web service, and terminates
// on shutdown signal
func RunWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	statuses *StatusCollection,
	origin MapOrigin,
	httpPort int,
	shutdownSignal chan bool,
) {
	wg.Add(1)
	defer wg.Done()
	srv := createServer(log, statuses, origin, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
