// Command aggregate runs one aggregation pass over the configured
// sources and prints the results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tenderwatch/internal/aggregate"
	"tenderwatch/internal/config"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
	"tenderwatch/internal/registry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	mode := flag.String("mode", "full", "Aggregation mode: full, priority, country, or selective")
	sources := flag.String("sources", "", "Comma-separated source keys for selective mode")
	country := flag.String("country", "", "Country code for country mode")
	keywords := flag.String("keywords", "", "Comma-separated search keywords")
	minAmount := flag.Float64("min-amount", 0, "Minimum contract amount filter")
	maxAmount := flag.Float64("max-amount", 0, "Maximum contract amount filter")
	daysBack := flag.Int("days-back", 0, "Limit results to listings from the last N days")
	noCache := flag.Bool("no-cache", false, "Bypass the per-source result cache")
	cacheTTL := flag.Duration("cache-ttl", 0, "Cache TTL override (default from config)")
	asJSON := flag.Bool("json", false, "Print the deduplicated contracts as JSON")

	flag.Parse()

	// Credentials come from the environment; a .env file is optional.
	_ = godotenv.Load()

	logger := log.New(os.Stderr, "[aggregate] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	reg := registry.New(registry.Options{Logger: logger})
	for _, sc := range cfg.Sources {
		reg.Register(sc.Descriptor())
	}

	agg := aggregate.New(aggregate.Options{
		Registry:      reg,
		Logger:        logger,
		Workers:       cfg.Workers,
		FetchTimeout:  cfg.FetchTimeout(),
		FieldMappings: cfg.FieldMappings(),
	})

	ttl := *cacheTTL
	if ttl <= 0 {
		ttl = cfg.CacheTTL()
	}

	req := aggregate.Request{
		Mode:     domain.Mode(*mode),
		Sources:  splitList(*sources),
		Country:  *country,
		UseCache: !*noCache,
		CacheTTL: ttl,
		Query: fetch.Query{
			Keywords:  splitList(*keywords),
			MinAmount: *minAmount,
			MaxAmount: *maxAmount,
			DaysBack:  *daysBack,
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := agg.Run(ctx, req)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary.Contracts); err != nil {
			logger.Fatalf("Error: %v", err)
		}
		return
	}

	printSummary(summary)
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

func printSummary(s *domain.RunSummary) {
	fmt.Printf("Run (%s) finished in %s\n", s.Mode, s.Duration().Round(time.Millisecond))
	fmt.Printf("Sources: %d total, %d succeeded, %d cached, %d failed\n",
		s.SourcesTotal, s.SourcesSucceeded, s.SourcesCached, s.SourcesFailed)
	fmt.Printf("Contracts: %d (%d duplicates dropped)\n", len(s.Contracts), s.Duplicates)

	for _, r := range s.Results {
		line := fmt.Sprintf("  %-24s %-8s %5d contracts", r.Source, r.Outcome, r.Contracts)
		if r.Duration > 0 {
			line += fmt.Sprintf("  %s", r.Duration.Round(time.Millisecond))
		}
		if r.Err != "" {
			line += "  " + r.Err
		}
		fmt.Println(line)
	}

	for _, c := range s.Contracts {
		amount := "-"
		if c.Amount != nil {
			amount = fmt.Sprintf("%.2f %s", *c.Amount, c.Currency)
		}
		fmt.Printf("[%s] %s | %s | %s\n", c.Source, c.Title, amount, c.QualityTier)
	}
}
