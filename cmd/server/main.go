/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the OverTaxed appeal-engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (env fallback for secrets)
  2. Initialize SQLite store
  3. Wire savings calculator, mailer, and geocoder into the API handler
  4. Configure HTTP router and start the built-in job scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -db           SQLite database path (default: overtaxed.db)
                Use ":memory:" for in-memory database
  -cron-secret  Bearer token for /api/cron (falls back to CRON_SECRET env;
                empty disables the endpoints with 503)
  -scheduler    Run the built-in job scheduler (default: true; disable when
                an external cron drives /api/cron)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the job scheduler and wait for an in-flight pass
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database and cron secret from the environment
  CRON_SECRET=s3cret ./server -db="./data/overtaxed.db"

  # Run with in-memory database, no background scheduler
  ./server -db=":memory:" -scheduler=false

SEE ALSO:
  - api/server.go: Router configuration
  - api/cron.go: Scheduled jobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/overtaxed/appeal-engine/api"
	"github.com/overtaxed/appeal-engine/jobs"
	"github.com/overtaxed/appeal-engine/notify"
	"github.com/overtaxed/appeal-engine/savings"
	"github.com/overtaxed/appeal-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "overtaxed.db", "SQLite database path")
	cronSecret := flag.String("cron-secret", "", "bearer token for /api/cron (falls back to CRON_SECRET)")
	runScheduler := flag.Bool("scheduler", true, "run the built-in job scheduler")
	flag.Parse()

	secret := *cronSecret
	if secret == "" {
		secret = os.Getenv("CRON_SECRET")
	}
	if secret == "" {
		log.Println("Warning: no cron secret configured; /api/cron answers 503")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire dependencies. The log sender and the fixed-point geocoder are the
	// dev transports; production swaps in real providers here.
	mailer := &notify.Mailer{Sender: notify.LogSender{}, Directory: store}
	calculator := &savings.Calculator{Store: store}
	handler := api.NewHandler(store, calculator, mailer, devGeocoder{})

	// Create router
	router := api.NewRouter(handler, secret)

	// Background jobs
	scheduler := api.NewJobScheduler(handler)
	scheduler.Enabled = *runScheduler
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// devGeocoder returns a fixed Cook County coordinate. Stands in for a real
// geocoding provider in local runs.
type devGeocoder struct{}

func (devGeocoder) Locate(ctx context.Context, address string) (jobs.Location, error) {
	return jobs.Location{Latitude: 41.8781, Longitude: -87.6298}, nil
}
