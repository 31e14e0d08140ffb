// Package main runs the aggregation HTTP server, exposing token and wallet
// aggregation, health, stats, and Prometheus metrics over REST.
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

	"github.com/joho/godotenv"

	sdk "github.com/CardaLabs/sdk"
	"github.com/CardaLabs/sdk/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	if v := os.Getenv("AGGSRV_CONFIG"); v != "" {
		*configPath = v
	}
	if v := os.Getenv("AGGSRV_ADDR"); v != "" {
		*addr = v
	}

	cfg := config.LoadOrDefault(*configPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	client, err := sdk.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newHandler(client),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Aggregation server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := client.Close(); err != nil {
		log.Printf("Client shutdown error: %v", err)
	}
}
