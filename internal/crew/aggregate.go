package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nivhenn/property-agency/internal/property"
	"github.com/nivhenn/property-agency/internal/scoring"
)

// BuildFinalReport computes the weighted overall score from the collected
// specialist outputs, runs the synthesis task, and assembles the immutable
// report. The synthesis task failing still yields a complete report; only
// the memo and summary fall back to placeholders.
func (c *Crew) BuildFinalReport(ctx context.Context, listing property.Listing, specialists SpecialistResult) FinalReport {
	outputs := specialists.Outputs

	investment := outputs[KeyInvestment]
	location := outputs[KeyLocation]
	news := outputs[KeyNews]
	vcRisk := outputs[KeyVCRisk]
	construction := outputs[KeyConstruction]

	scoreMap := map[string]int{
		KeyInvestment:   investment.Score,
		KeyLocation:     location.Score,
		KeyNews:         news.Score,
		KeyVCRisk:       vcRisk.Score,
		KeyConstruction: construction.Score,
	}
	overall := scoring.WeightedOverall(scoreMap, c.weights)

	aggregatorPrompt := fillTemplate(aggregatorTaskTemplate, map[string]string{
		"property_summary":      specialists.ListingDetails,
		"specialist_scores":     formatSpecialistScores(scoreMap, overall),
		"specialist_rationales": formatSpecialistRationales(outputs),
	})

	raws := c.runner.RunAll(ctx, []Task{{
		Label:  "aggregator",
		System: aggregatorSystem,
		Prompt: aggregatorPrompt,
	}})
	aggregated := AgentOutput{Score: scoring.NeutralScore}
	if len(raws) > 0 {
		aggregated = ParseAgentOutput(raws[0])
	}

	memo := "No memo generated"
	if len(aggregated.Notes) > 0 {
		memo = strings.Join(aggregated.Notes, "\n")
	}
	summary := aggregated.Rationale
	if summary == "" {
		summary = "Summary unavailable"
	}

	return FinalReport{
		ReportID:  uuid.NewString(),
		ListingID: listing.ListingID,
		Address:   listing.Address,
		AskPrice:  listing.AskPrice,
		Raw:       listing.Raw,
		Scores: AgentScores{
			Investment:   investment.Score,
			Location:     location.Score,
			NewsSignal:   news.Score,
			RiskReturn:   vcRisk.Score,
			Construction: construction.Score,
			Overall:      overall,
		},
		Confidence:   scoring.Confidence(scoreMap),
		MemoMarkdown: memo,
		Summary:      summary,

		InvestmentOutput:   investment,
		LocationOutput:     location,
		NewsOutput:         news,
		VCRiskOutput:       vcRisk,
		ConstructionOutput: construction,

		CreatedAt: time.Now().UTC(),
	}
}

// AnalyzeListing runs the full pipeline for one listing: specialist
// scheduling followed by synthesis and report assembly.
func (c *Crew) AnalyzeListing(ctx context.Context, listing property.Listing, enabled []string) FinalReport {
	specialists := c.RunSpecialists(ctx, listing, enabled)
	return c.BuildFinalReport(ctx, listing, specialists)
}

func formatSpecialistScores(scores map[string]int, overall int) string {
	return fmt.Sprintf(
		"\nInvestment Analyst: %d/100\nLocation Risk: %d/100\nNews Signals: %d/100\nVC Risk/Return: %d/100\nConstruction: %d/100\nWeighted Overall: %d/100\n",
		scores[KeyInvestment], scores[KeyLocation], scores[KeyNews],
		scores[KeyVCRisk], scores[KeyConstruction], overall,
	)
}

func formatSpecialistRationales(outputs map[string]AgentOutput) string {
	section := func(title, key string) string {
		out := outputs[key]
		notes := out.Notes
		if len(notes) > 3 {
			notes = notes[:3]
		}
		return fmt.Sprintf("**%s:** %s\nNotes: %s\n", title, out.Rationale, strings.Join(notes, ", "))
	}
	return "\n" + strings.Join([]string{
		section("Investment", KeyInvestment),
		section("Location", KeyLocation),
		section("News", KeyNews),
		section("VC Risk", KeyVCRisk),
		section("Construction", KeyConstruction),
	}, "\n")
}
