package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "", "Directory of client files served at /, empty to serve none")
	dbPath := flag.String("db", "arena.db", "SQLite database path, empty to disable persistence")
	width := flag.Float64("width", 0, "Arena width (default 5000)")
	height := flag.Float64("height", 0, "Arena height (default 5000)")
	tick := flag.Duration("tick", 0, "Simulation tick duration (default 1/60s)")
	flag.Parse()

	if port := os.Getenv("PORT"); port != "" {
		*addr = ":" + port
	}

	cfg := DefaultConfig()
	if *width > 0 {
		cfg.Width = *width
	}
	if *height > 0 {
		cfg.Height = *height
	}
	if *tick > 0 {
		cfg.TickRate = *tick
	}

	archetypes, err := DefaultArchetypes()
	if err != nil {
		log.Fatalf("archetypes: %v", err)
	}

	var db *DB
	var analytics *Analytics
	if *dbPath != "" {
		db, err = OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		analytics = NewAnalytics(db)
	}

	game, err := NewGame(cfg, archetypes, analytics)
	if err != nil {
		log.Fatalf("game: %v", err)
	}
	go game.Run()

	hub := NewHub(game, db, analytics)
	go hub.Run()

	mux := SetupRoutes(hub, *clientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", *addr)
		if *clientDir != "" {
			log.Printf("Serving client files from %s", *clientDir)
		}
		log.Printf("Arena %.0fx%.0f, tick %v", cfg.Width, cfg.Height, cfg.TickRate)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	server.Close()
	game.Stop()
	if analytics != nil {
		analytics.Stop()
	}
}
