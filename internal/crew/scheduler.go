package crew

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nivhenn/property-agency/internal/property"
	"github.com/nivhenn/property-agency/internal/scoring"
	"github.com/nivhenn/property-agency/internal/serper"
	"github.com/nivhenn/property-agency/internal/socrata"
)

const defaultDatasetLimit = 50

// Config wires the crew's collaborators. Runner is required; Records and
// News are optional and their absence degrades the corresponding context
// rather than failing a run.
type Config struct {
	Runner       TaskRunner
	Records      *socrata.Client
	News         *serper.Client
	Weights      map[string]float64
	DatasetLimit int
	Logger       *zap.SugaredLogger
}

// Crew schedules the specialist analyses for a listing and assembles the
// final report. A run always progresses Idle -> fetching external data ->
// specialists running -> collected; specialists that were disabled or failed
// are filled with neutral defaults so the collected set is always complete.
type Crew struct {
	runner       TaskRunner
	records      *socrata.Client
	news         *serper.Client
	weights      map[string]float64
	datasetLimit int
	log          *zap.SugaredLogger
}

func New(cfg Config) *Crew {
	if cfg.Weights == nil {
		cfg.Weights = map[string]float64{
			KeyInvestment:   0.30,
			KeyLocation:     0.25,
			KeyNews:         0.10,
			KeyVCRisk:       0.20,
			KeyConstruction: 0.15,
		}
	}
	if cfg.DatasetLimit <= 0 {
		cfg.DatasetLimit = defaultDatasetLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Crew{
		runner:       cfg.Runner,
		records:      cfg.Records,
		news:         cfg.News,
		weights:      cfg.Weights,
		datasetLimit: cfg.DatasetLimit,
		log:          cfg.Logger,
	}
}

// RunSpecialists executes one scheduling pass for a listing. enabled lists
// the specialist keys to run; nil means all of them, municipal-records fetch
// included. The result always contains an output for every scoring
// specialist: disabled ones get a "skipped" neutral default and ones whose
// task produced nothing parseable get a "missing" neutral default.
func (c *Crew) RunSpecialists(ctx context.Context, listing property.Listing, enabled []string) SpecialistResult {
	enabledSet := toSet(enabled)
	isEnabled := func(key string) bool {
		return enabledSet == nil || enabledSet[key]
	}

	result := SpecialistResult{
		Outputs:         map[string]AgentOutput{},
		RawOutputs:      map[string]string{},
		ListingDetails:  formatListingDetails(listing),
		LocationDetails: formatLocationDetails(listing),
	}

	address := listing.BestAddress()
	fetchRecords := c.records != nil && address != "" && isEnabled(KeyLACity)
	fetchNews := c.news != nil && isEnabled(KeyNews)

	var (
		bundle       socrata.Bundle
		bundleOK     bool
		newsResponse serper.NewsResponse
	)

	// External data is fetched concurrently. Neither source can fail the
	// run: a records failure is logged and dropped, and the news client
	// folds its own failures into the response note.
	g, gctx := errgroup.WithContext(ctx)
	if fetchRecords {
		g.Go(func() error {
			b, err := c.records.FetchAll(gctx, address, listing.BestZip(), c.datasetLimit)
			if err != nil {
				c.log.Warnw("municipal records unavailable", "address", address, "err", err)
				return nil
			}
			bundle, bundleOK = b, true
			return nil
		})
	}
	if fetchNews {
		g.Go(func() error {
			newsResponse = c.news.Search(gctx, buildNewsQuery(listing), 8)
			return nil
		})
	}
	_ = g.Wait()

	if bundleOK {
		result.LACityRecords = &bundle
		if data, err := json.Marshal(bundle); err == nil {
			result.RawOutputs["la_city_records"] = string(data)
		}
	}

	if isEnabled(KeyNews) && c.news == nil {
		result.NewsContext = "No Serper news items available."
	}
	if fetchNews {
		result.NewsContext = formatNewsContext(newsResponse)
		result.SerperMissing = newsResponse.Note == serper.NoteMissingKey
		if result.SerperMissing {
			result.Outputs[KeyNews] = AgentOutput{
				Score:     scoring.NeutralScore,
				Rationale: "Serper API key missing; defaulting to neutral score.",
				Notes: []string{
					"Set SERPER_API_KEY to enable news sentiment analysis.",
					"Without news signals, rely on other agents for sentiment.",
				},
			}
			result.RawOutputs[KeyNews] = "Serper API key missing"
		}
	}

	tasks, labels := c.buildTasks(result, isEnabled)
	if len(tasks) > 0 {
		raws := c.runner.RunAll(ctx, tasks)
		for i, label := range labels {
			raw := ""
			if i < len(raws) {
				raw = raws[i]
			}
			result.RawOutputs[label] = raw
			result.Outputs[label] = ParseAgentOutput(raw)
		}
	}

	// Every scoring specialist must be present in the collected set.
	for _, key := range AllAgentKeys {
		if _, ok := result.Outputs[key]; ok {
			continue
		}
		if !isEnabled(key) {
			result.Outputs[key] = AgentOutput{
				Score:     scoring.NeutralScore,
				Rationale: "Agent not selected for this run; using neutral score.",
				Notes:     []string{"Agent skipped by user"},
			}
			result.RawOutputs[key] = "Agent skipped"
			continue
		}
		result.Outputs[key] = AgentOutput{
			Score:     scoring.NeutralScore,
			Rationale: "Agent failed to produce output; defaulting to neutral score.",
			Notes:     []string{"Check agent configuration or API responses."},
		}
		result.RawOutputs[key] = "Agent output missing"
	}

	return result
}

// buildTasks assembles the prompt tasks for the enabled specialists in
// canonical order. The returned labels parallel the tasks so raw outputs can
// be zipped back by index.
func (c *Crew) buildTasks(result SpecialistResult, isEnabled func(string) bool) ([]Task, []string) {
	var (
		tasks  []Task
		labels []string
	)
	add := func(label, system, template string, vars map[string]string) {
		tasks = append(tasks, Task{
			Label:  label,
			System: system,
			Prompt: fillTemplate(template, vars),
		})
		labels = append(labels, label)
	}

	if isEnabled(KeyInvestment) {
		add(KeyInvestment, investorSystem, investorTaskTemplate,
			map[string]string{"listing_details": result.ListingDetails})
	}
	if isEnabled(KeyLocation) {
		add(KeyLocation, locationSystem, locationTaskTemplate,
			map[string]string{"location_details": result.LocationDetails})
	}
	if isEnabled(KeyNews) && !result.SerperMissing {
		add(KeyNews, newsSystem, newsTaskTemplate, map[string]string{
			"area_info": result.LocationDetails,
			"news_data": result.NewsContext,
		})
	}
	if isEnabled(KeyVCRisk) {
		add(KeyVCRisk, vcRiskSystem, vcRiskTaskTemplate,
			map[string]string{"property_details": result.ListingDetails})
	}
	if isEnabled(KeyConstruction) {
		add(KeyConstruction, constructionSystem, constructionTaskTemplate,
			map[string]string{"property_info": result.ListingDetails})
	}
	return tasks, labels
}

func toSet(keys []string) map[string]bool {
	if keys == nil {
		return nil
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
