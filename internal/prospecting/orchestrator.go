// Package prospecting orchestrates a full run: search, per-prospect website
// and AI analysis, and final ordering.
package prospecting

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/search"
)

// WebsiteAnalyzer derives website signals for one prospect.
type WebsiteAnalyzer interface {
	Analyze(ctx context.Context, url string) model.WebsiteAnalysis
}

// AIAnalyzer produces the sales-intelligence record for one prospect.
type AIAnalyzer interface {
	Analyze(ctx context.Context, prospect model.Prospect, icp model.ICP) model.AIAnalysis
}

// RunResult is the outcome of one prospecting run. Its JSON shape is served
// verbatim by the HTTP API.
type RunResult struct {
	Success   bool             `json:"success"`
	Prospects []model.Prospect `json:"prospects"`
	Count     int              `json:"count"`
}

// Engine wires the search provider and the two analyzers into the sequential
// enrichment loop.
type Engine struct {
	searcher search.Searcher
	website  WebsiteAnalyzer
	ai       AIAnalyzer
	limiter  *rate.Limiter
}

// NewEngine creates an Engine. paceInterval spaces consecutive prospect
// enrichments; zero or negative disables pacing.
func NewEngine(searcher search.Searcher, website WebsiteAnalyzer, ai AIAnalyzer, paceInterval time.Duration) *Engine {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if paceInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(paceInterval), 1)
	}
	return &Engine{
		searcher: searcher,
		website:  website,
		ai:       ai,
		limiter:  limiter,
	}
}

// Run executes one prospecting run for the ICP. Search failure is the only
// fatal error; per-prospect analysis failures degrade that prospect and the
// run continues. Prospects are enriched sequentially with the configured
// pacing and returned sorted by priority, then digital presence score.
func (e *Engine) Run(ctx context.Context, icp model.ICP, maxResults int) (*RunResult, error) {
	start := time.Now()

	prospects, err := e.searcher.Search(ctx, icp, maxResults)
	if err != nil {
		return nil, eris.Wrap(err, "prospecting: search")
	}

	for i := range prospects {
		// Burst of one lets the first prospect through immediately.
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "prospecting: run cancelled")
		}

		p := &prospects[i]

		if p.Website == "" {
			p.WebsiteAnalysis = model.DefaultWebsiteAnalysis("no website")
		} else {
			p.WebsiteAnalysis = e.website.Analyze(ctx, p.Website)
		}

		p.AIAnalysis = e.ai.Analyze(ctx, *p, icp)

		zap.L().Debug("prospecting: prospect enriched",
			zap.String("name", p.Name),
			zap.String("priority", string(p.AIAnalysis.Priority)),
			zap.Int("score", p.AIAnalysis.DigitalPresenceScore),
		)
	}

	model.SortProspects(prospects)

	zap.L().Info("prospecting: run complete",
		zap.String("icp", icp.Name),
		zap.Int("count", len(prospects)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &RunResult{
		Success:   true,
		Prospects: prospects,
		Count:     len(prospects),
	}, nil
}
