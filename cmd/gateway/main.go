package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/circlehq/circle-go/internal/infrastructure/config"
	"github.com/circlehq/circle-go/internal/infrastructure/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config overlay")
	port := flag.String("port", "", "Server port (overrides PORT)")
	platformURL := flag.String("platform", "", "Platform base URL (overrides PLATFORM_URL)")
	dev := flag.Bool("dev", false, "Development mode (colored logs, debug level)")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override everything
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *platformURL != "" {
		cfg.Platform.URL = *platformURL
	}
	if *dev {
		cfg.Logging.Development = true
	}

	// Create server
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
