package main

import (
	"fmt"
	logger "log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/nats-io/nats.go"

	"github.com/transitsimtools/routesim/app/route-sim/sim"
	"github.com/transitsimtools/routesim/business/data/routes"
	"github.com/transitsimtools/routesim/business/movement"
	"github.com/transitsimtools/routesim/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "ROUTE_SIM : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		NATS struct {
			Enabled bool   `conf:"default:false"`
			URL     string `conf:"default:nats://127.0.0.1:4222"`
		}
		HTTP struct {
			Port int `conf:"default:8181"`
		}
		Sim struct {
			Mode              string  `conf:"default:unscheduled,help:unscheduled or scheduled"`
			Entities          int     `conf:"default:10"`
			Until             float64 `conf:"default:3600,help:simulation horizon in seconds"`
			Seed              int64   `conf:"default:1"`
			FirstStop         int     `conf:"default:-1,help:starting stop index for unscheduled entities. negative picks one at random"`
			MinWait           float64 `conf:"default:10"`
			MaxWait           float64 `conf:"default:120"`
			MinSpeed          float64 `conf:"default:5"`
			MaxSpeed          float64 `conf:"default:16.7"`
			FallbackSpeed     float64 `conf:"default:16.7,help:speed in m/s used when schedule timing has already passed"`
			MaxPlausibleSpeed float64 `conf:"default:33.3,help:speeds above this in m/s are reported as suspect"`
			MaxScheduleDrift  float64 `conf:"default:60,help:seconds behind schedule before a run is considered broken"`
			OriginLat         float64 `conf:"default:45.523"`
			OriginLon         float64 `conf:"default:-122.676"`
			ServiceDate       string  `conf:"help:date schedules run under in 2006-01-02 format. defaults to today"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Simulate entity movement over routes and schedules"
	const prefix = "ROUTESIM"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	// =========================================================================
	// Load simulation map data

	stops, err := routes.GetStops(db)
	if err != nil {
		return fmt.Errorf("loading stops: %w", err)
	}
	stopMap := routes.MakeStopMap(stops)
	log.Printf("main: loaded %d stops", len(stops))

	clock := sim.NewClock(0)
	finder := &sim.StraightPathFinder{}
	rng := rand.New(rand.NewSource(cfg.Sim.Seed))

	// =========================================================================
	// Build prototype movement and replicate per entity

	var prototype *movement.RouteMovement
	switch cfg.Sim.Mode {
	case "unscheduled":
		allRoutes, err := routes.GetRoutes(db)
		if err != nil {
			return fmt.Errorf("loading routes: %w", err)
		}
		log.Printf("main: loaded %d routes", len(allRoutes))
		catalog, err := movement.MakeCatalog(allRoutes, stopMap)
		if err != nil {
			return fmt.Errorf("building route catalog: %w", err)
		}
		policy := movement.MakeUniformPausePolicy(rng,
			cfg.Sim.MinWait, cfg.Sim.MaxWait, cfg.Sim.MinSpeed, cfg.Sim.MaxSpeed)
		prototype, err = movement.NewUnscheduled(log, catalog, finder, policy, cfg.Sim.FirstStop, rng)
		if err != nil {
			return fmt.Errorf("building movement prototype: %w", err)
		}
	case "scheduled":
		serviceDate := time.Now()
		if cfg.Sim.ServiceDate != "" {
			serviceDate, err = time.Parse("2006-01-02", cfg.Sim.ServiceDate)
			if err != nil {
				return fmt.Errorf("parsing service date %q: %w", cfg.Sim.ServiceDate, err)
			}
		}
		calendar := routes.MakeServiceCalendar()
		schedules, err := routes.GetSchedulesForDate(db, calendar, serviceDate)
		if err != nil {
			return fmt.Errorf("loading schedules: %w", err)
		}
		if len(schedules) == 0 {
			return fmt.Errorf("no %s schedules for %s",
				calendar.ServiceClassOn(serviceDate), serviceDate.Format("2006-01-02"))
		}
		log.Printf("main: loaded %d %s schedules for %s",
			len(schedules), calendar.ServiceClassOn(serviceDate), serviceDate.Format("2006-01-02"))
		timing := movement.Timing{
			FallbackSpeed:     cfg.Sim.FallbackSpeed,
			MaxPlausibleSpeed: cfg.Sim.MaxPlausibleSpeed,
			MaxScheduleDrift:  cfg.Sim.MaxScheduleDrift,
		}
		prototype, err = movement.NewScheduled(log, schedules[0], stopMap, finder, clock, timing)
		if err != nil {
			return fmt.Errorf("building movement prototype: %w", err)
		}
	default:
		return fmt.Errorf("unknown simulation mode %q", cfg.Sim.Mode)
	}

	entities := make([]*sim.Entity, 0, cfg.Sim.Entities)
	current := prototype
	for i := 0; i < cfg.Sim.Entities; i++ {
		if i > 0 {
			current, err = prototype.Replicate()
			if err != nil {
				return fmt.Errorf("replicating movement for entity %d: %w", i, err)
			}
		}
		entities = append(entities, &sim.Entity{
			Id:       fmt.Sprintf("entity-%d", i+1),
			Movement: current,
		})
	}
	log.Printf("main: created %d %s entities", len(entities), cfg.Sim.Mode)

	// =========================================================================
	// Start NATS, if enabled

	var natsConnection *nats.Conn
	if cfg.NATS.Enabled {
		natsConnection, err = nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connecting to NATS at %s: %w", cfg.NATS.URL, err)
		}
		defer natsConnection.Close()
		log.Printf("main: publishing paths to NATS at %s", cfg.NATS.URL)
	}

	// =========================================================================
	// Start web service and movement loop

	statuses := sim.NewStatusCollection()
	origin := sim.MapOrigin{Lat: cfg.Sim.OriginLat, Lon: cfg.Sim.OriginLon}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	webShutdown := make(chan bool)
	wg := sync.WaitGroup{}
	go sim.RunWebService(log, &wg, statuses, origin, cfg.HTTP.Port, webShutdown)

	err = sim.RunMovementLoop(log, clock, entities, natsConnection, statuses, cfg.Sim.Until, shutdown)

	close(webShutdown)
	wg.Wait()
	return err
}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}
