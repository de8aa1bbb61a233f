// Command uwbd runs the UWB positioning service: HTTP ingest endpoints, an
// optional anchor serial reader, sqlite storage and downstream forwarding.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mapadevsports/uwbv2/internal/anchorport"
	"github.com/mapadevsports/uwbv2/internal/api"
	"github.com/mapadevsports/uwbv2/internal/config"
	"github.com/mapadevsports/uwbv2/internal/db"
	"github.com/mapadevsports/uwbv2/internal/forward"
	"github.com/mapadevsports/uwbv2/internal/ingest"
	"github.com/mapadevsports/uwbv2/internal/observability"
	"github.com/mapadevsports/uwbv2/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	dbPath     = flag.String("db", "", "Database path (overrides config)")
	devMode    = flag.Bool("dev", false, "Replay fixtures.txt instead of opening the serial port")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	migrationsFS, err := db.MigrationsFS()
	if err != nil {
		log.Fatalf("failed to load migrations: %v", err)
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	metrics, err := observability.NewIngestCollector(nil)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	var forwarder forward.Forwarder = forward.Disabled{}
	if cfg.Forward.URL != "" {
		forwarder = forward.NewHTTPForwarder(nil, cfg.Forward.URL, cfg.Forward.Timeout)
		log.Printf("Forwarding committed readings to %s", cfg.Forward.URL)
	}

	orch := ingest.New(database, ingest.Config{
		Offset:          cfg.OffsetValue(),
		CalibrationTags: cfg.CalibrationTags,
		Forwarder:       forwarder,
		Metrics:         metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		port := anchorport.NewFromPort(anchorport.NewMockPort(data))
		go port.Monitor(ctx)
		go anchorport.NewBatcher(orch, cfg.Serial.FlushEvery, cfg.Serial.MaxBatch).Run(ctx, port.Events())
	} else if cfg.Serial.Port != "" {
		port, err := anchorport.Open(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Fatalf("failed to open anchor port %s: %v", cfg.Serial.Port, err)
		}
		go port.Monitor(ctx)
		go anchorport.NewBatcher(orch, cfg.Serial.FlushEvery, cfg.Serial.MaxBatch).Run(ctx, port.Events())
		log.Printf("Reading anchor telemetry from %s", cfg.Serial.Port)
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.LoggingMiddleware(api.NewServer(database, orch, metrics).ServeMux()),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("uwbv2 %s listening on %s (offset=%.1f)", version.Version, cfg.Listen, cfg.OffsetValue())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
