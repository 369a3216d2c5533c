package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nutanixed/prism-vnc-proxy/internal/audit"
	"github.com/nutanixed/prism-vnc-proxy/internal/config"
	"github.com/nutanixed/prism-vnc-proxy/internal/database"
	"github.com/nutanixed/prism-vnc-proxy/internal/keymap"
	"github.com/nutanixed/prism-vnc-proxy/internal/prism"
	"github.com/nutanixed/prism-vnc-proxy/internal/server"
)

func main() {
	config.Load()

	if config.Cfg.PrismHostname == "" {
		log.Fatal("VNCPROXY_PRISM_HOSTNAME must be set")
	}
	if config.Cfg.PrismPassword == "" {
		log.Fatal("VNCPROXY_PRISM_PASSWORD must be set")
	}

	if err := database.Init(config.Cfg.DatabasePath); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	if config.Cfg.LayoutOverrides != "" {
		if err := keymap.LoadOverrides(config.Cfg.LayoutOverrides); err != nil {
			log.Fatalf("Layout overrides: %v", err)
		}
		log.Printf("Loaded layout overrides from %s", config.Cfg.LayoutOverrides)
	}

	client := prism.NewClient(prism.Config{
		Hostname:  config.Cfg.PrismHostname,
		Port:      config.Cfg.PrismPort,
		Username:  config.Cfg.PrismUsername,
		Password:  config.Cfg.PrismPassword,
		VerifyTLS: config.Cfg.VerifyTLS,
	})

	auditor := audit.NewAuditor(database.DB, config.Cfg.AuditRetentionDays)

	// Nightly retention purge for console audit records.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() {
		if _, err := auditor.Purge(); err != nil {
			log.Printf("Audit purge: %v", err)
		}
	}); err != nil {
		log.Fatalf("Audit purge schedule: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(client, auditor)

	httpServer := &http.Server{
		Addr:    config.Cfg.BindAddr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Listening on %s (prism %s:%d, tls_verify=%v)",
			config.Cfg.BindAddr, config.Cfg.PrismHostname, config.Cfg.PrismPort, config.Cfg.VerifyTLS)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	srv.Sessions().CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
}
