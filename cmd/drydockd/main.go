package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drydock/drydock/internal/clock"
	"github.com/drydock/drydock/internal/config"
	"github.com/drydock/drydock/internal/dockerengine"
	"github.com/drydock/drydock/internal/freshness"
	"github.com/drydock/drydock/internal/logging"
	"github.com/drydock/drydock/internal/notify"
	"github.com/drydock/drydock/internal/orchestrator"
	"github.com/drydock/drydock/internal/scheduler"
	"github.com/drydock/drydock/internal/updater"
)

// version is set at build time via -X main.version=$(VERSION).
var version = "dev"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)

	fmt.Println("drydock " + version)
	fmt.Println("=============================================")
	for k, v := range cfg.Values() {
		fmt.Printf("%s=%s\n", k, v)
	}
	fmt.Println("=============================================")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	docker, err := dockerengine.NewClient(cfg.DockerHost)
	if err != nil {
		log.Error("failed to create Docker client", "error", err)
		os.Exit(1)
	}
	defer docker.Close()

	if err := docker.Ping(ctx); err != nil {
		log.Error("Docker engine unreachable", "error", err)
		os.Exit(1)
	}

	var scan *orchestrator.Scanner
	if cfg.OrchestratorEnabled() {
		var opts []orchestrator.Option
		switch {
		case cfg.PortainerAPIKey != "":
			opts = append(opts, orchestrator.WithAPIKey(cfg.PortainerAPIKey))
		case cfg.PortainerUsername != "":
			opts = append(opts, orchestrator.WithBasicLogin(cfg.PortainerUsername, cfg.PortainerPassword))
		}
		if cfg.PortainerInsecureTLS {
			opts = append(opts, orchestrator.WithInsecureTLS())
		}
		client := orchestrator.NewClient(cfg.PortainerURL, opts...)
		if err := client.TestConnection(ctx); err != nil {
			log.Warn("Portainer unreachable, stack phase skipped until it responds", "error", err)
		}
		scan = orchestrator.NewScanner(client)
		log.Info("orchestrator stack phase enabled", "url", cfg.PortainerURL)
	} else {
		log.Info("orchestrator stack phase disabled, no Portainer configuration")
	}

	oracle := freshness.NewOracle(docker, log)
	if cfg.FreshnessDirectCheck {
		creds := map[string]freshness.Credential{}
		if cfg.DockerConfigPath != "" {
			if loaded, err := freshness.LoadDockerConfigCredentials(cfg.DockerConfigPath); err != nil {
				log.Warn("failed to load Docker config credentials", "path", cfg.DockerConfigPath, "error", err)
			} else {
				creds = loaded
			}
		}
		oracle = oracle.WithDirectChecker(freshness.NewDirectChecker(creds))
		log.Info("registry-direct freshness precheck enabled")
	}

	notifier := notify.Build(cfg, log)
	eng := updater.New(docker, oracle, scan, cfg, log, clock.Real{}, notifier)

	if cfg.MetricsEnabled {
		go serveMetrics(log, cfg.MetricsPort)
	}

	sched := scheduler.New(cfg, log, clock.Real{}, func(ctx context.Context) {
		eng.RunCycle(ctx)
	})

	if err := sched.Run(ctx); err != nil {
		log.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("drydock shut down")
}

// serveMetrics runs the Prometheus scrape endpoint until the process
// exits; a failure here is logged, not fatal — metrics are an ambient
// concern, not load-bearing for the update cycle itself.
func serveMetrics(log *logging.Logger, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("metrics server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", "error", err)
	}
}
