package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"house-prices/internal/api"
	"house-prices/internal/config"
	"house-prices/internal/scraper"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.String("port", "", "Port to listen on (overrides server.port)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := scraper.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize scraper: %v", err)
	}
	defer rt.Close()

	log.Printf("Sites: %v", rt.Orchestrator.Sites())
	if cfg.Cache.Persist {
		log.Printf("Cache database: %s", cfg.Cache.Path)
	}

	// Create router
	router := api.NewRouter(api.NewHandlers(rt.Orchestrator, rt.Cache), cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Received interrupt signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	// Start server
	log.Printf("Starting server on http://localhost%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
