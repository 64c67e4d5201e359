package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/config"
	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/pkg/anthropic"
)

// AIAnalyzer produces the sales-intelligence record for a prospect using the
// LLM. Like the website analyzer it never returns an error: any API or parse
// failure yields the degraded default analysis.
type AIAnalyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	agency    model.AgencyContext
}

// NewAIAnalyzer creates an AIAnalyzer.
func NewAIAnalyzer(client anthropic.Client, cfg config.AnthropicConfig, agency model.AgencyContext) *AIAnalyzer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AIAnalyzer{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		agency:    agency,
	}
}

// Analyze sends one message for the prospect and parses the structured
// response. The system block carries the agency and ICP context with a cache
// breakpoint, so repeated calls within a run pay for it once.
func (a *AIAnalyzer) Analyze(ctx context.Context, prospect model.Prospect, icp model.ICP) model.AIAnalysis {
	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(a.systemPrompt(icp)),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildProspectPrompt(prospect)},
		},
	}

	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		zap.L().Warn("analyzer: ai analysis failed",
			zap.String("prospect", prospect.Name),
			zap.Error(err),
		)
		return model.DefaultAIAnalysis("llm call failed")
	}

	resp.Usage.LogCost(a.model, "prospect_analysis")

	analysis, err := parseAnalysis(resp.Text())
	if err != nil {
		zap.L().Warn("analyzer: ai response unparseable",
			zap.String("prospect", prospect.Name),
			zap.Error(err),
		)
		return model.DefaultAIAnalysis("malformed response")
	}

	return analysis
}

// systemPrompt assembles the shared context: who the agency is, what it
// sells, and which customer profile this run targets.
func (a *AIAnalyzer) systemPrompt(icp model.ICP) string {
	var b strings.Builder

	b.WriteString("You are a sales intelligence analyst for a digital agency. ")
	b.WriteString("You evaluate local businesses as potential clients and produce actionable outreach intelligence.\n\n")

	b.WriteString("AGENCY:\n")
	fmt.Fprintf(&b, "Name: %s\n", a.agency.Name)
	fmt.Fprintf(&b, "Services: %s\n", a.agency.Services)
	if a.agency.Positioning != "" {
		fmt.Fprintf(&b, "Positioning: %s\n", a.agency.Positioning)
	}

	b.WriteString("\nTARGET CUSTOMER PROFILE:\n")
	fmt.Fprintf(&b, "Industry: %s\n", icp.Industry)
	fmt.Fprintf(&b, "Business type: %s\n", icp.BusinessType)
	fmt.Fprintf(&b, "Location: %s\n", icp.Location)
	if icp.EmployeeRange != "" {
		fmt.Fprintf(&b, "Employee range: %s\n", icp.EmployeeRange)
	}
	if icp.RevenueRange != "" {
		fmt.Fprintf(&b, "Revenue range: %s\n", icp.RevenueRange)
	}
	if len(icp.PainPoints) > 0 {
		fmt.Fprintf(&b, "Known pain points: %s\n", strings.Join(icp.PainPoints, "; "))
	}
	if len(icp.BuyingSignals) > 0 {
		fmt.Fprintf(&b, "Buying signals: %s\n", strings.Join(icp.BuyingSignals, "; "))
	}

	b.WriteString("\nRespond with a single JSON object and nothing else. The object must contain exactly these fields:\n")
	b.WriteString(analysisSchema)

	return b.String()
}

// analysisSchema describes the required response shape. Every field must be
// present; ratings are short phrases, priority is one of high/medium/low.
const analysisSchema = `{
  "digital_presence_score": <integer 0-100>,
  "website_quality": "<short assessment>",
  "seo_rating": "<short assessment>",
  "social_media_presence": "<short assessment>",
  "online_reputation": "<short assessment>",
  "pain_points": ["<pain point>", ...],
  "automation_opportunities": ["<opportunity>", ...],
  "sales_opportunities": ["<opportunity>", ...],
  "fit_reasons": ["<reason>", ...],
  "talking_points": ["<talking point>", ...],
  "recommended_package": "<package name>",
  "estimated_value": "<deal size estimate>",
  "priority": "<high|medium|low>",
  "market_analysis": "<one paragraph>",
  "competitor_analysis": "<one paragraph>",
  "demographics": "<one paragraph>"
}`

// buildProspectPrompt renders one prospect's raw and website data as the user
// message.
func buildProspectPrompt(p model.Prospect) string {
	var b strings.Builder

	b.WriteString("Analyze this business:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Address: %s\n", p.Address)
	if p.Rating > 0 {
		fmt.Fprintf(&b, "Rating: %.1f (%d reviews)\n", p.Rating, p.ReviewCount)
	}
	if p.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", p.Phone)
	}

	if p.Website == "" {
		b.WriteString("Website: none found\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Website: %s\n", p.Website)

	wa := p.WebsiteAnalysis
	b.WriteString("\nWebsite signals:\n")
	if wa.Degraded {
		fmt.Fprintf(&b, "Website could not be analyzed (%s).\n", wa.DegradedReason)
		return b.String()
	}
	fmt.Fprintf(&b, "Title: %s\n", wa.Title)
	fmt.Fprintf(&b, "Description: %s\n", wa.Description)
	fmt.Fprintf(&b, "Modern design: %t\n", wa.HasModernDesign)
	fmt.Fprintf(&b, "Mobile responsive: %t\n", wa.IsMobileResponsive)
	fmt.Fprintf(&b, "Basic SEO in place: %t\n", wa.HasSEO)
	fmt.Fprintf(&b, "Load time: %dms\n", wa.LoadTimeMS)
	if len(wa.SocialLinks) > 0 {
		fmt.Fprintf(&b, "Social profiles: %s\n", strings.Join(wa.SocialLinks, ", "))
	}
	if wa.Content != "" {
		fmt.Fprintf(&b, "\nPage content:\n%s\n", wa.Content)
	}

	return b.String()
}

// parseAnalysis extracts the JSON object from an LLM response, tolerating
// markdown code fences and surrounding prose.
func parseAnalysis(text string) (model.AIAnalysis, error) {
	raw := extractJSON(text)
	if raw == "" {
		return model.AIAnalysis{}, fmt.Errorf("no json object in response")
	}

	var analysis model.AIAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return model.AIAnalysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}

	// Priority arrives from the model; normalize and clamp to the known set.
	analysis.Priority = model.Priority(strings.ToLower(string(analysis.Priority)))
	switch analysis.Priority {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
	default:
		analysis.Priority = model.PriorityLow
	}

	if analysis.DigitalPresenceScore < 0 {
		analysis.DigitalPresenceScore = 0
	}
	if analysis.DigitalPresenceScore > 100 {
		analysis.DigitalPresenceScore = 100
	}

	return analysis, nil
}

// extractJSON finds the outermost JSON object in text. Handles fenced blocks
// and leading or trailing prose.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
