package crew

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nivhenn/property-agency/internal/scoring"
)

// rawAgentOutput mirrors the JSON the specialists are asked to emit. Score
// is decoded as any because models sometimes return it as a float or a
// quoted string.
type rawAgentOutput struct {
	Score     any      `json:"score_1_to_100"`
	Rationale string   `json:"rationale"`
	Notes     []string `json:"notes"`
}

// ParseAgentOutput extracts a canonical AgentOutput from an unconstrained
// specialist response. It never fails: anything unparseable degrades to the
// neutral score with an explanatory note, so the scheduler and aggregator
// never see an absent or invalid result.
func ParseAgentOutput(raw string) AgentOutput {
	jsonStr := extractJSONBlock(raw)

	var parsed rawAgentOutput
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return AgentOutput{
			Score:     scoring.NeutralScore,
			Rationale: fmt.Sprintf("Parse error: %v", err),
			Notes:     []string{"Failed to parse agent response"},
		}
	}

	out := AgentOutput{
		Score:     scoring.NeutralScore,
		Rationale: parsed.Rationale,
		Notes:     parsed.Notes,
	}
	if parsed.Score != nil {
		out.Score = scoring.ToScore(parsed.Score)
	}
	if out.Rationale == "" {
		out.Rationale = "No rationale provided"
	}
	if out.Notes == nil {
		out.Notes = []string{}
	}
	return out
}

// extractJSONBlock pulls the JSON payload out of a specialist response.
// Precedence: the interior of a ```json fence, then the interior of the
// first generic ``` pair, then the raw text as-is.
func extractJSONBlock(raw string) string {
	const (
		jsonFence = "```json"
		fence     = "```"
	)

	if start := strings.Index(raw, jsonFence); start >= 0 {
		body := raw[start+len(jsonFence):]
		if end := strings.Index(body, fence); end >= 0 {
			return strings.TrimSpace(body[:end])
		}
		return strings.TrimSpace(body)
	}

	if start := strings.Index(raw, fence); start >= 0 {
		body := raw[start+len(fence):]
		if end := strings.Index(body, fence); end >= 0 {
			return strings.TrimSpace(body[:end])
		}
		return strings.TrimSpace(body)
	}

	return strings.TrimSpace(raw)
}
