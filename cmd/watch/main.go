// Command watch runs the tiered scheduler continuously, logging newly
// seen contracts and exposing metrics and status over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"tenderwatch/internal/aggregate"
	"tenderwatch/internal/config"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
	"tenderwatch/internal/observability"
	"tenderwatch/internal/registry"
	"tenderwatch/internal/schedule"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	keywords := flag.String("keywords", "", "Comma-separated search keywords applied to every run")
	minAmount := flag.Float64("min-amount", 0, "Minimum contract amount filter")
	daysBack := flag.Int("days-back", 0, "Limit results to listings from the last N days")
	metricsAddr := flag.String("metrics-addr", ":9090", "Metrics/status HTTP address (empty to disable)")

	flag.Parse()

	_ = godotenv.Load()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	reg := registry.New(registry.Options{Logger: logger})
	for _, sc := range cfg.Sources {
		reg.Register(sc.Descriptor())
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	agg := aggregate.New(aggregate.Options{
		Registry:      reg,
		Metrics:       metrics,
		Logger:        logger,
		Workers:       cfg.Workers,
		FetchTimeout:  cfg.FetchTimeout(),
		FieldMappings: cfg.FieldMappings(),
	})

	sched := schedule.New(schedule.Options{
		Aggregator: agg,
		Registry:   reg,
		Metrics:    metrics,
		Logger:     logger,
		Tick:       cfg.SchedulerTick(),
		Query: fetch.Query{
			Keywords:  splitList(*keywords),
			MinAmount: *minAmount,
			DaysBack:  *daysBack,
		},
		Callback: func(tier domain.PriorityTier, contracts []domain.NormalizedContract) {
			for _, c := range contracts {
				if c.Amount != nil {
					logger.Printf("NEW [%s/%s] %s (%.2f %s)", tier, c.Source, c.Title, *c.Amount, c.Currency)
					continue
				}
				logger.Printf("NEW [%s/%s] %s", tier, c.Source, c.Title)
			}
		},
	})

	if *metricsAddr != "" {
		go serveHTTP(logger, *metricsAddr, reg, sched)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched.Start(ctx)
	logger.Printf("Watching %d sources", len(cfg.Sources))

	<-ctx.Done()
	logger.Println("Received signal, initiating graceful shutdown...")

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Println("Graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	}

	logger.Println("Shutdown complete")
}

func serveHTTP(logger *log.Logger, addr string, reg *registry.Registry, sched *schedule.Scheduler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Scheduler schedule.Status     `json:"scheduler"`
			Registry  registry.Statistics `json:"registry"`
		}{sched.GetStatus(), reg.GetStatistics()})
	})

	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
