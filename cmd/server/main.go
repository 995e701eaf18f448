package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stagesync/internal/config"
	"stagesync/internal/db"
	"stagesync/internal/handlers"
	"stagesync/internal/services"
)

func main() {
	// Environment variables from .env override nothing already set
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded, using system environment")
	}

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize the session journal database
	if err := db.InitDatabase(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	journal := services.NewJournal(db.DB)
	go journal.Run()
	defer journal.Close()

	// Initialize the synchronization core
	wsService := services.NewWebSocketService(cfg, journal)
	go wsService.Run()
	defer wsService.Stop()

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(wsService, cfg.Socket)
	healthHandler := handlers.NewHealthHandler(wsService)
	sessionHandler := handlers.NewSessionHandler(journal)

	// Setup routes
	router := handlers.SetupRoutes(wsHandler, healthHandler, sessionHandler)

	// Configure server
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		if cfg.TLS.Enabled {
			server.TLSConfig = &tls.Config{
				MinVersion: getTLSVersion(cfg.TLS.MinVersion),
			}

			log.Printf("Starting HTTPS server on %s:%s", cfg.Server.Host, cfg.Server.Port)
			log.Printf("TLS Certificate: %s", cfg.TLS.CertFile)
			log.Printf("TLS Key: %s", cfg.TLS.KeyFile)

			if err := server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("listen: %v", err)
			}
		} else {
			log.Printf("Starting HTTP server on %s:%s", cfg.Server.Host, cfg.Server.Port)
			log.Printf("Warning: HTTP mode is not recommended for production")

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("listen: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
