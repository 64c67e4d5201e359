package model

import "sort"

// Priority is the sales-outreach tier assigned to a prospect by AI analysis.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the numeric sort weight for a priority. Unknown or empty
// values rank as low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// ICP is an Ideal Customer Profile: a reusable targeting template (industry,
// location, size, pain points) that drives a prospecting run.
type ICP struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Industry      string   `json:"industry"`
	BusinessType  string   `json:"business_type"`
	Location      string   `json:"location"`
	EmployeeRange string   `json:"employee_range,omitempty"`
	RevenueRange  string   `json:"revenue_range,omitempty"`
	PainPoints    []string `json:"pain_points,omitempty"`
	BuyingSignals []string `json:"buying_signals,omitempty"`
	OwnerID       string   `json:"owner_id"`
}

// AgencyContext describes the agency's own services, injected into AI
// analysis prompts so recommendations match what the agency actually sells.
type AgencyContext struct {
	Name        string `json:"name"`
	Services    string `json:"services"`
	Positioning string `json:"positioning,omitempty"`
}

// WebsiteAnalysis holds signals derived from fetching a prospect's website.
// Degraded marks the documented fallback produced when the prospect has no
// website or the fetch fails; the zero flags and "N/A" strings are part of
// the contract, not an error state.
type WebsiteAnalysis struct {
	Content            string   `json:"content"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	HasModernDesign    bool     `json:"has_modern_design"`
	IsMobileResponsive bool     `json:"is_mobile_responsive"`
	LoadTimeMS         int64    `json:"load_time_ms"`
	HasSEO             bool     `json:"has_seo"`
	SocialLinks        []string `json:"social_links,omitempty"`
	Degraded           bool     `json:"degraded,omitempty"`
	DegradedReason     string   `json:"degraded_reason,omitempty"`
}

// DefaultWebsiteAnalysis returns the fallback analysis: all booleans false,
// "N/A" title/description, empty content, zero load time.
func DefaultWebsiteAnalysis(reason string) WebsiteAnalysis {
	return WebsiteAnalysis{
		Title:          "N/A",
		Description:    "N/A",
		Degraded:       true,
		DegradedReason: reason,
	}
}

// AIAnalysis is the sales-intelligence record produced by the LLM for one
// prospect. All sixteen fields are required by the output schema; a degraded
// default is substituted when the call or parse fails.
type AIAnalysis struct {
	DigitalPresenceScore    int      `json:"digital_presence_score"`
	WebsiteQuality          string   `json:"website_quality"`
	SEORating               string   `json:"seo_rating"`
	SocialMediaPresence     string   `json:"social_media_presence"`
	OnlineReputation        string   `json:"online_reputation"`
	PainPoints              []string `json:"pain_points"`
	AutomationOpportunities []string `json:"automation_opportunities"`
	SalesOpportunities      []string `json:"sales_opportunities"`
	FitReasons              []string `json:"fit_reasons"`
	TalkingPoints           []string `json:"talking_points"`
	RecommendedPackage      string   `json:"recommended_package"`
	EstimatedValue          string   `json:"estimated_value"`
	Priority                Priority `json:"priority"`
	MarketAnalysis          string   `json:"market_analysis"`
	CompetitorAnalysis      string   `json:"competitor_analysis"`
	Demographics            string   `json:"demographics"`
	Degraded                bool     `json:"degraded,omitempty"`
	DegradedReason          string   `json:"degraded_reason,omitempty"`
}

// FallbackPainPoint is the single pain point present on a degraded analysis.
const FallbackPainPoint = "Analysis failed - manual review required"

// DefaultAIAnalysis returns the degraded-but-valid analysis used when the
// LLM call fails or returns malformed JSON: zero score, "Unknown" ratings,
// one fallback pain point, low priority.
func DefaultAIAnalysis(reason string) AIAnalysis {
	return AIAnalysis{
		WebsiteQuality:      "Unknown",
		SEORating:           "Unknown",
		SocialMediaPresence: "Unknown",
		OnlineReputation:    "Unknown",
		PainPoints:          []string{FallbackPainPoint},
		RecommendedPackage:  "Unknown",
		EstimatedValue:      "Unknown",
		Priority:            PriorityLow,
		MarketAnalysis:      "Unknown",
		CompetitorAnalysis:  "Unknown",
		Demographics:        "Unknown",
		Degraded:            true,
		DegradedReason:      reason,
	}
}

// Prospect is one discovered business. Identity is the search provider's
// place ID plus business name. Fields accumulate in three waves: raw search
// results, website analysis, AI analysis.
type Prospect struct {
	PlaceID     string  `json:"place_id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`

	WebsiteAnalysis WebsiteAnalysis `json:"website_analysis"`
	AIAnalysis      AIAnalysis      `json:"ai_analysis"`
}

// SortProspects orders prospects by priority rank descending, then digital
// presence score descending. The sort is stable, so exact ties keep their
// discovery order.
func SortProspects(prospects []Prospect) {
	sort.SliceStable(prospects, func(i, j int) bool {
		ri, rj := prospects[i].AIAnalysis.Priority.Rank(), prospects[j].AIAnalysis.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return prospects[i].AIAnalysis.DigitalPresenceScore > prospects[j].AIAnalysis.DigitalPresenceScore
	})
}
