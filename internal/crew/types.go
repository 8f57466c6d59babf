// Package crew orchestrates the multi-specialist analysis of a property
// listing: it schedules the enabled specialist tasks, normalizes their raw
// text into canonical scored outputs, aggregates a weighted overall score,
// and assembles the final report.
package crew

import (
	"time"

	"github.com/nivhenn/property-agency/internal/property"
	"github.com/nivhenn/property-agency/internal/socrata"
)

// Canonical specialist keys. Every analysis run produces exactly one
// AgentOutput per key, real or defaulted.
const (
	KeyInvestment   = "investment"
	KeyLocation     = "location"
	KeyNews         = "news"
	KeyVCRisk       = "vc_risk"
	KeyConstruction = "construction"

	// KeyLACity enables the municipal-records fetch; it feeds context into
	// the other specialists rather than producing a score of its own.
	KeyLACity = "la_city"
)

// AllAgentKeys lists the scoring specialists in their canonical order.
var AllAgentKeys = []string{KeyInvestment, KeyLocation, KeyNews, KeyVCRisk, KeyConstruction}

// AgentOutput is the canonical result of one specialist. Score is always in
// [1,100]; a parse or execution failure still yields a valid output with
// the neutral score and an explanatory rationale.
type AgentOutput struct {
	Score     int      `json:"score_1_to_100"`
	Rationale string   `json:"rationale"`
	Notes     []string `json:"notes"`
}

// AgentScores collects the per-specialist scores plus the weighted overall.
type AgentScores struct {
	Investment   int `json:"investment"`
	Location     int `json:"location"`
	NewsSignal   int `json:"news_signal"`
	RiskReturn   int `json:"risk_return"`
	Construction int `json:"construction"`
	Overall      int `json:"overall"`
}

// SpecialistResult aggregates one scheduling run: parsed outputs and raw
// audit text keyed by specialist, the derived prompt context strings, and
// the optional municipal-records bundle.
type SpecialistResult struct {
	Outputs         map[string]AgentOutput
	RawOutputs      map[string]string
	ListingDetails  string
	LocationDetails string
	NewsContext     string
	SerperMissing   bool
	LACityRecords   *socrata.Bundle
}

// FinalReport is the immutable output of one listing analysis.
type FinalReport struct {
	ReportID  string         `json:"report_id"`
	ListingID string         `json:"listing_id"`
	Address   string         `json:"address,omitempty"`
	AskPrice  float64        `json:"ask_price,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`

	Scores       AgentScores `json:"scores"`
	Confidence   string      `json:"confidence"`
	MemoMarkdown string      `json:"memo_markdown"`
	Summary      string      `json:"summary,omitempty"`

	InvestmentOutput   AgentOutput `json:"investment_output"`
	LocationOutput     AgentOutput `json:"location_output"`
	NewsOutput         AgentOutput `json:"news_output"`
	VCRiskOutput       AgentOutput `json:"vc_risk_output"`
	ConstructionOutput AgentOutput `json:"construction_output"`

	CreatedAt time.Time `json:"created_at"`
}

// Task is one unit of specialist work handed to the TaskRunner: a filled
// prompt template plus the label its raw output will be zipped back to.
type Task struct {
	Label  string
	System string
	Prompt string
}

// Listing re-exported for convenience in callers that only import crew.
type Listing = property.Listing
