package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/tiko-golang/internal/mqttbridge"
	"github.com/joshp123/tiko-golang/internal/server"
	"github.com/joshp123/tiko-golang/tiko"
)

func main() {
	configPath := flag.String("config", envOrDefault("TIKOD_CONFIG", ""), "path to YAML config file")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	coordinator, err := tiko.NewCoordinator(tiko.Config{
		Credentials: tiko.Credentials{
			Email:    cfg.Email,
			Password: cfg.Password,
		},
		BaseURL:        cfg.BaseURL,
		PollInterval:   time.Duration(cfg.PollInterval),
		RequestTimeout: time.Duration(cfg.RequestTimeout),
	}, logger)
	if err != nil {
		logger.Fatalf("coordinator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first refresh must complete before the daemon is ready; a
	// failure here is a setup failure, not a transient cycle failure.
	if err := coordinator.Start(ctx); err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer coordinator.Stop()

	registry := prometheus.NewRegistry()
	for _, collector := range tiko.Collectors(coordinator) {
		registry.MustRegister(collector)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", server.HealthHandler)
	mux.Handle("/metrics", server.MetricsHandler(registry))
	mux.Handle("GET /api/snapshot", server.SnapshotHandler(coordinator))
	mux.Handle("POST /api/rooms/{id}/temperature", server.TemperatureHandler(coordinator))
	mux.Handle("POST /api/mode", server.ModeHandler(coordinator))

	httpServer := server.NewHTTPServer(cfg.HTTPAddr, mux)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http serve: %v", err)
		}
	}()

	if cfg.MQTT.Enabled {
		bridge := mqttbridge.New(coordinator, mqttbridge.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			BaseTopic: cfg.MQTT.BaseTopic,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       cfg.MQTT.QoS,
			Retain:    cfg.MQTT.Retain,
		}, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("mqtt bridge: %v", err)
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
