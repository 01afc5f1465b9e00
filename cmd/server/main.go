/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ride ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Build the ledger, achievement engine, and cache
  4. Configure HTTP router, start the refresh scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -db           SQLite database path (default: rides.db)
                Use ":memory:" for an in-memory database
  -admins       Comma-separated administrator usernames
  -companies    Comma-separated accepted company ids ("" = any)
  -vehicledb    JSON vehicle catalog path ("" = no catalog)
  -edit-window  How old a ride a non-admin may still modify
  -refresh      Achievement refresh interval
  -count-first-rides
                Whether a first ride counts toward the takeover balance

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, close the database
  4. Exit

EXAMPLES:
  # Run with file database and a vehicle catalog
  ./server -db="./data/rides.db" -vehicledb="./data/vehicles.json" -admins=alice

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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
	"strings"
	"syscall"
	"time"

	"github.com/warp/ride-ledger/achievements"
	"github.com/warp/ride-ledger/api"
	"github.com/warp/ride-ledger/ledger"
	"github.com/warp/ride-ledger/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "rides.db", "SQLite database path")
	admins := flag.String("admins", "", "comma-separated administrator usernames")
	companies := flag.String("companies", "", "comma-separated accepted company ids (empty = any)")
	vehicleDB := flag.String("vehicledb", "", "JSON vehicle catalog path")
	editWindow := flag.Duration("edit-window", 24*time.Hour, "how old a ride a non-admin may still modify")
	refresh := flag.Duration("refresh", 5*time.Minute, "achievement refresh interval")
	countFirstRides := flag.Bool("count-first-rides", true, "count first rides toward the takeover balance")
	flag.Parse()

	// Initialize store
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Vehicle catalog
	catalog := ledger.VehicleCatalog(ledger.EmptyCatalog)
	if *vehicleDB != "" {
		loaded, err := ledger.LoadCatalogFile(*vehicleDB)
		if err != nil {
			log.Fatalf("Failed to load vehicle catalog: %v", err)
		}
		catalog = loaded
	}

	// Ledger
	auth := ledger.AdminList(splitList(*admins))
	opts := []ledger.Option{ledger.WithEditWindow(*editWindow)}
	if cs := splitList(*companies); len(cs) > 0 {
		opts = append(opts, ledger.WithCompanies(cs))
	}
	l := ledger.New(db, catalog, auth, opts...)

	// Achievements
	engine := achievements.NewEngine(achievements.Catalog(), db,
		achievements.EngineOptions{CountFirstRides: *countFirstRides})
	cache := achievements.NewCache(engine, l)

	// Handler and router
	handler := api.NewHandler(l, cache, engine, db, auth)
	handler.CountFirstRides = *countFirstRides
	router := api.NewRouter(handler)

	// Background achievement refresh
	scheduler := api.NewRefreshScheduler(cache)
	scheduler.CheckInterval = *refresh
	scheduler.Start()
	defer scheduler.Stop()

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
		log.Printf("🚋 Server starting on http://localhost:%d", *port)
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
