package crew

import (
	"fmt"
	"strings"

	"github.com/nivhenn/property-agency/internal/property"
	"github.com/nivhenn/property-agency/internal/serper"
)

// Specialist system prompts. Each one pins the persona and the strict-JSON
// contract; the per-run details are substituted into the task templates.
const (
	investorSystem = `You are a Long-Term Investment Analyst: a seasoned real estate investor focused on resilient cash flow and downside protection. You prioritize sustainable tenant demand, conservative underwriting, and clean exit strategies. You've weathered multiple market cycles and know that conservative assumptions save fortunes. Respond with strict JSON only.`

	locationSystem = `You are a Location & Trajectory Analyst: a location intelligence specialist who predicts neighborhood trajectories. You analyze demographics, transit access, local amenities, crime data, and regulatory environments. You can spot early gentrification signals and identify areas with hidden regulatory risks like rent control or eviction moratoria. Respond with strict JSON only.`

	newsSystem = `You are a News & Community Signals Analyst: an investigative analyst who monitors news, social media, and community forums for real estate signals. You track zoning changes, policy shifts, notable incidents, nuisance issues, and landlord-tenant friction. Recent, severe, and frequent signals matter most. When data is unavailable, acknowledge it and score cautiously. Respond with strict JSON only.`

	vcRiskSystem = `You are a Risk/Return Architect: a VC-style risk architect who systematically identifies and mitigates downside. You think in terms of risk vectors: market, regulatory, liquidity, execution, capex, climate. For each risk you propose concrete mitigations such as financing terms, reserves, insurance, phasing, vendor contracts, and rate hedges. Respond with strict JSON only.`

	constructionSystem = `You are a Construction Scope & Cost Analyst: a construction and rehab specialist who quickly estimates capital needs. From limited property descriptions you gauge scope level (light turn vs gut renovation), rough $/SF costs for the area and asset class, timeline risks, and tenant disruption. You err on the conservative side and flag major unknowns that require site inspection. Respond with strict JSON only.`

	aggregatorSystem = `You are a Principal Investment Writer: a principal investor who reviews all specialist analyses and writes decisive investment memos. You combine quantitative scores with qualitative insights to form a clear thesis. Your memos are concise (<= 1 page), actionable, and include specific conditions for proceeding. You compute weighted overall scores and explain the key drivers in 1-2 sentences. Respond with strict JSON only.`
)

const investorTaskTemplate = `
Analyze this commercial property listing for long-term investment quality.

**Listing Details:**
{listing_details}

**Your Task:**
1. Assess long-term hold quality (resilient cash flow, downside protection, tenant demand, exit liquidity)
2. Output EXACTLY in this JSON format (no extra text):
{
  "score_1_to_100": <integer 1-100, higher=better>,
  "rationale": "<2-3 sentence explanation>",
  "notes": [
    "<key pro/con bullet 1>",
    "<key pro/con bullet 2>",
    "<key pro/con bullet 3>",
    "<underwriting assumption to test 1>",
    "<underwriting assumption to test 2>"
  ]
}

**Scoring Guidelines:**
- 80-100: Exceptional quality, strong fundamentals, minimal risk
- 60-79: Good quality, solid fundamentals, manageable risk
- 40-59: Average quality, moderate concerns
- 20-39: Below average, significant concerns
- 1-19: Poor quality, major red flags

Be conservative and practical. Focus on what could go wrong and how to mitigate it.
`

const locationTaskTemplate = `
Analyze this property's location and trajectory.

**Location Details:**
{location_details}

**Collaboration Context:** Other teammates are covering investment fundamentals, construction, risk/return, and news. Deliver insights strictly about location trajectory and neighborhood texture. If information is sparse, call out location-specific data to gather rather than repeating general investment commentary.

**Your Task:**
1. Evaluate area trajectory using proxies: population/income trends, transit/walkability,
   amenities/schools, crime trends, regulatory red flags
2. Predict near-term (2-5y) attractiveness and gentrification risk
3. Output EXACTLY in this JSON format (no extra text):
{
  "score_1_to_100": <integer 1-100, higher=better trajectory>,
  "rationale": "<2-3 sentence assessment>",
  "notes": [
    "<population/income trend signal>",
    "<transit/walkability assessment>",
    "<amenities/schools vibe>",
    "<crime/safety trend>",
    "<regulatory risk or opportunity>"
  ]
}

**Scoring Guidelines:**
- 80-100: Strong upward trajectory, minimal risks
- 60-79: Positive trajectory, some headwinds
- 40-59: Stable/flat, uncertain direction
- 20-39: Declining trajectory, significant concerns
- 1-19: Major decline or severe risks

Focus on concrete signals and be specific about risks to investigate further.
`

const newsTaskTemplate = `
Analyze news and community signals for this property's area.

**Area Information:**
{area_info}

**Available Data:**
{news_data}

**Collaboration Context:** Other analysts will comment on investment math, location fundamentals, and construction risk. Concentrate on policy, sentiment, and incident signals. Avoid restating broader investment or construction points. Flag news gaps and community chatter that only you would notice.

**Your Task:**
1. Scan for: zoning changes, policy shifts, notable incidents, nuisance issues,
   landlord-tenant friction
2. If no data available, acknowledge it and score conservatively
3. Output EXACTLY in this JSON format (no extra text):
{
  "score_1_to_100": <integer 1-100, higher=fewer concerns>,
  "rationale": "<2-3 sentence assessment of signal quality>",
  "notes": [
    "<signal 1: [DATE] brief description>",
    "<signal 2: [DATE] brief description>",
    "<signal 3: if any, else 'No significant signals found'>",
    "<data limitation note if applicable>"
  ]
}

**Scoring Guidelines:**
- 80-100: No significant negative signals, positive developments
- 60-79: Minor concerns, manageable issues
- 40-59: Moderate concerns or limited data (neutral)
- 20-39: Multiple concerning signals
- 1-19: Severe or frequent negative signals

Weight recent events more heavily. If no data available, default to 50 and note the limitation.
`

const vcRiskTaskTemplate = `
Analyze risk vectors and propose mitigations for this property investment.

**Property Details:**
{property_details}

**Your Task:**
1. Identify major risk vectors: market, regulatory, liquidity, execution, capex, climate
2. Propose 3-6 concrete mitigations (financing terms, reserves, insurance, phasing, etc.)
3. Estimate adjusted attractiveness reflecting mitigated profile
4. Output EXACTLY in this JSON format (no extra text):
{
  "score_1_to_100": <integer 1-100, higher=better mitigated risk/return>,
  "rationale": "<2-3 sentence risk/return assessment>",
  "notes": [
    "<Risk 1: description + proposed mitigation>",
    "<Risk 2: description + proposed mitigation>",
    "<Risk 3: description + proposed mitigation>",
    "<Risk 4 or additional mitigation if applicable>",
    "<Overall risk profile summary>"
  ]
}

**Scoring Guidelines:**
- 80-100: Low risk profile with strong mitigations available
- 60-79: Moderate risks, addressable with standard mitigations
- 40-59: Mixed risk/return, requires careful structuring
- 20-39: High risks, mitigations uncertain or costly
- 1-19: Severe risks, poor risk-adjusted returns

Be specific and actionable. Focus on what can realistically be mitigated.
`

const constructionTaskTemplate = `
Estimate construction scope and costs for this property.

**Property Information:**
{property_info}

**Collaboration Context:** Other specialists will speak to investment metrics, neighborhood dynamics, and policy signals. Stay in your construction lane: diagnose scope, costs, and timeline risks. If data is missing, clearly state the site inspections or documents needed rather than repeating their insights.

**Your Task:**
1. Estimate likely scope level (light turn, moderate rehab, or gut renovation)
2. Rough $/SF cost band for the area/class (very rough estimate)
3. Timeline risk and disruption risk assessment
4. Output EXACTLY in this JSON format (no extra text):
{
  "score_1_to_100": <integer 1-100, higher=lower scope risk/better capex outlook>,
  "rationale": "<2-3 sentence capex assessment>",
  "notes": [
    "<Estimated scope level: light/moderate/heavy>",
    "<Rough $/SF estimate or range>",
    "<Timeline risk assessment>",
    "<Disruption risk (tenant vacancy, income loss)>",
    "<Major unknowns requiring inspection>"
  ]
}

**Scoring Guidelines:**
- 80-100: Minimal work needed, low capex, short timeline
- 60-79: Moderate work, manageable costs and timeline
- 40-59: Significant work, uncertain costs/timeline
- 20-39: Major renovation, high costs, long timeline
- 1-19: Severe issues, prohibitive costs or risks

Be conservative. Flag unknowns that could derail the project.
`

const aggregatorTaskTemplate = `
Synthesize all specialist analyses into a final investment memo.

**Property Summary:**
{property_summary}

**Specialist Scores:**
{specialist_scores}

**Specialist Rationales:**
{specialist_rationales}

**Your Task:**
Create a concise investment memo (<= 1 page) with these sections:
1. **Deal Snapshot**: Address, price, key specs (2-3 lines)
2. **Score Table**: List each specialist score (1-100) and overall weighted score
3. **Top 5 Risks & Mitigations**: Key concerns + how to address
4. **Red Flags**: Deal-breakers or critical unknowns
5. **Investment Thesis**: 3-4 sentence summary of the opportunity
6. **Go/No-Go**: Clear recommendation with conditions

**Weights for Overall Score:**
- Investment Analyst: 30%
- Location Risk: 25%
- VC Risk/Return: 20%
- Construction: 15%
- News Signals: 10%

Output EXACTLY in this JSON format (no extra text):
{
  "score_1_to_100": <computed weighted overall score>,
  "rationale": "<1-2 sentence explanation of overall score drivers>",
  "notes": [
    "<memo in markdown format, ~1 page>",
    "<include all 6 sections mentioned above>",
    "<be decisive and concise>",
    "<format with markdown headers (##) and bullets>"
  ]
}

The memo should be in notes[0] as a complete markdown document.
Be direct, actionable, and decisive.
`

// fillTemplate substitutes {name} placeholders. Templates contain literal
// JSON braces and percent signs, so printf-style formatting is avoided.
func fillTemplate(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// formatListingDetails renders the listing fields the specialists consume.
// Missing values render as N/A rather than being omitted, so every prompt
// has the same shape.
func formatListingDetails(l property.Listing) string {
	askPrice := "N/A"
	if l.AskPrice > 0 {
		askPrice = "$" + groupDigits(fmt.Sprintf("%.0f", l.AskPrice))
	}
	buildingSize := "N/A"
	if l.BuildingSize > 0 {
		buildingSize = groupDigits(fmt.Sprintf("%.0f", l.BuildingSize)) + " SF"
	}
	capRate := "N/A"
	if l.CapRate > 0 {
		capRate = fmt.Sprintf("%g%%", l.CapRate)
	}
	yearBuilt := "N/A"
	if l.YearBuilt > 0 {
		yearBuilt = fmt.Sprintf("%d", l.YearBuilt)
	}
	units := "N/A"
	if l.Units > 0 {
		units = fmt.Sprintf("%d", l.Units)
	}

	return fmt.Sprintf(
		"Address: %s\nCity: %s, State: %s\nAsking Price: %s\nBuilding Size: %s\nProperty Type: %s\nCap Rate: %s\nYear Built: %s\nUnits: %s\n",
		orNA(l.Address), orNA(l.City), orNA(l.State),
		askPrice, buildingSize, orNA(l.PropertyType), capRate, yearBuilt, units,
	)
}

func formatLocationDetails(l property.Listing) string {
	switch {
	case l.City != "" && l.State != "":
		return l.City + ", " + l.State
	case l.City != "":
		return l.City
	default:
		return "Unknown location"
	}
}

// buildNewsQuery assembles the Serper search string from listing metadata.
func buildNewsQuery(l property.Listing) string {
	var parts []string
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if l.State != "" && l.State != l.City {
		parts = append(parts, l.State)
	}
	if l.PropertyType != "" {
		parts = append(parts, l.PropertyType)
	}
	parts = append(parts, "commercial real estate")
	return strings.TrimSpace(strings.Join(parts, " "))
}

// formatNewsContext renders a Serper response as markdown for the news
// specialist, capped at 8 items.
func formatNewsContext(resp serper.NewsResponse) string {
	if len(resp.Items) == 0 {
		base := "No Serper news items available."
		if resp.Note != "" {
			return base + "\nNote: " + resp.Note
		}
		return base
	}

	lines := []string{"Recent Serper news results:"}
	items := resp.Items
	if len(items) > 8 {
		items = items[:8]
	}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		source := item.Source
		if source == "" {
			source = "Unknown source"
		}
		date := item.Date
		if date == "" {
			date = "Unknown date"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s\n  Summary: %s\n  Link: %s",
			date, source, title, item.Snippet, item.Link))
	}
	if resp.Note != "" {
		lines = append(lines, "Note: "+resp.Note)
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// groupDigits inserts thousands separators into an unsigned integer string.
func groupDigits(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var sb strings.Builder
	rem := n % 3
	if rem > 0 {
		sb.WriteString(s[:rem])
	}
	for i := rem; i < n; i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
