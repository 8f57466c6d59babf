// Command property-analysis searches LoopNet for commercial listings and
// runs the multi-specialist analysis crew over each result, persisting the
// final reports to SQLite.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/nivhenn/property-agency/internal/config"
	"github.com/nivhenn/property-agency/internal/crew"
	"github.com/nivhenn/property-agency/internal/loopnet"
	"github.com/nivhenn/property-agency/internal/property"
	"github.com/nivhenn/property-agency/internal/reportstore"
	"github.com/nivhenn/property-agency/internal/serper"
	"github.com/nivhenn/property-agency/internal/socrata"
)

func main() {
	city := flag.String("city", "Los Angeles", "City to search for listings")
	propertyType := flag.String("property-type", "", "Property type filter (e.g. multifamily)")
	priceMin := flag.Float64("price-min", 0, "Minimum asking price")
	priceMax := flag.Float64("price-max", 0, "Maximum asking price")
	maxListings := flag.Int("max-listings", 3, "Maximum number of listings to analyze")
	agents := flag.String("agents", "", "Comma-separated specialist keys to run (default: all)")
	dbPath := flag.String("db", "", "Report database path (default from REPORT_DB_PATH)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()
	log := logger.Sugar()

	settings := config.Load(log)
	if *dbPath == "" {
		*dbPath = settings.ReportDBPath
	}

	runner, err := crew.NewAnthropicRunnerFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	listings, err := loopnet.NewClient(loopnet.Config{
		APIKey:  settings.RapidAPIKey,
		BaseURL: settings.LoopNetBaseURL,
		Host:    settings.LoopNetHost,
		Logger:  log,
	})
	if err != nil {
		log.Fatalf("loopnet client: %v", err)
	}

	var records *socrata.Client
	if settings.SocrataAppToken != "" {
		records, err = socrata.NewClient(socrata.Config{
			AppToken: settings.SocrataAppToken,
			Retries:  settings.MaxRetries,
			Logger:   log,
		})
		if err != nil {
			log.Fatalf("socrata client: %v", err)
		}
	} else {
		log.Warn("SOCRATA_APP_TOKEN not set; municipal records disabled")
	}

	news := serper.NewClient(serper.Config{APIKey: settings.SerperAPIKey, Logger: log})

	analysisCrew := crew.New(crew.Config{
		Runner:       runner,
		Records:      records,
		News:         news,
		Weights:      settings.Weights(),
		DatasetLimit: settings.DatasetLimit,
		Logger:       log,
	})

	store, err := reportstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open report store: %v", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	params := property.SearchParams{Page: 1, Size: 20}
	if *propertyType != "" {
		params.PropertyType = *propertyType
	}
	if *priceMin > 0 {
		params.PriceMin = priceMin
	}
	if *priceMax > 0 {
		params.PriceMax = priceMax
	}

	log.Infow("searching listings", "city", *city, "type", *propertyType)
	found, err := listings.SearchProperties(ctx, params, *city)
	if err != nil {
		log.Fatalf("listing search failed: %v", err)
	}
	if len(found) == 0 {
		log.Info("no listings matched the search")
		return
	}
	if len(found) > *maxListings {
		found = found[:*maxListings]
	}

	enabled := parseAgents(*agents, log)

	analyzed := 0
	for _, listing := range found {
		if ctx.Err() != nil {
			break
		}
		log.Infow("analyzing listing", "listing_id", listing.ListingID, "address", listing.Address)

		report := analysisCrew.AnalyzeListing(ctx, listing, enabled)
		if err := store.Save(report); err != nil {
			log.Errorw("failed to persist report", "listing_id", listing.ListingID, "err", err)
			continue
		}
		analyzed++

		fmt.Printf("\n=== %s (%s) ===\n", listing.Address, listing.ListingID)
		fmt.Printf("Overall: %d/100 (confidence: %s)\n", report.Scores.Overall, report.Confidence)
		fmt.Printf("  Investment %d | Location %d | News %d | Risk %d | Construction %d\n",
			report.Scores.Investment, report.Scores.Location, report.Scores.NewsSignal,
			report.Scores.RiskReturn, report.Scores.Construction)
		fmt.Printf("Summary: %s\n", report.Summary)
	}

	log.Infow("run complete", "searched", len(found), "analyzed", analyzed, "db", *dbPath)
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// parseAgents splits the -agents flag into specialist keys. Unknown keys are
// dropped with a warning rather than failing the run.
func parseAgents(raw string, log *zap.SugaredLogger) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	known := map[string]bool{crew.KeyLACity: true}
	for _, key := range crew.AllAgentKeys {
		known[key] = true
	}

	var keys []string
	for _, part := range strings.Split(raw, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if key == "" {
			continue
		}
		if !known[key] {
			log.Warnw("ignoring unknown agent key", "key", key)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
