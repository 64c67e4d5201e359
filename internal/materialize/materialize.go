// Package materialize converts analyzed prospects into CRM company records.
package materialize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/store"
)

// companySource tags materialized companies for provenance.
const companySource = "prospecting"

// Materializer creates companies from prospects, skipping names that already
// exist for the owner.
type Materializer struct {
	store store.Store
}

// New creates a Materializer.
func New(st store.Store) *Materializer {
	return &Materializer{store: st}
}

// Materialize creates a company per prospect and returns how many were
// created. A name collision (case-insensitive, per owner) skips that prospect
// silently; a create failure is logged and the rest continue.
func (m *Materializer) Materialize(ctx context.Context, prospects []model.Prospect, icp model.ICP, ownerID string) (int, error) {
	created := 0
	for _, p := range prospects {
		exists, err := m.store.CompanyExistsByName(ctx, ownerID, p.Name)
		if err != nil {
			return created, eris.Wrapf(err, "materialize: check existing %s", p.Name)
		}
		if exists {
			zap.L().Debug("materialize: company exists, skipping",
				zap.String("name", p.Name),
			)
			continue
		}

		company := model.Company{
			OwnerID:     ownerID,
			Name:        p.Name,
			Phone:       p.Phone,
			Website:     p.Website,
			Address:     p.Address,
			Industry:    icp.Industry,
			Source:      companySource,
			Description: BuildDescription(p, icp),
		}

		if _, err := m.store.CreateCompany(ctx, company); err != nil {
			zap.L().Error("materialize: create company failed",
				zap.String("name", p.Name),
				zap.Error(err),
			)
			continue
		}
		created++
	}

	zap.L().Info("materialize: companies created",
		zap.Int("created", created),
		zap.Int("prospects", len(prospects)),
	)

	return created, nil
}

// BuildDescription renders the AI analysis as the company description. The
// leading ICP line and section headers are fixed; downstream CRM tooling
// parses this format back. Empty sections are omitted.
func BuildDescription(p model.Prospect, icp model.ICP) string {
	a := p.AIAnalysis

	var b strings.Builder
	fmt.Fprintf(&b, "Prospecting result for ICP: %s\n", icp.Name)
	fmt.Fprintf(&b, "Priority: %s | Digital Presence Score: %d/100\n", a.Priority, a.DigitalPresenceScore)

	writeSection(&b, "Why They're a Good Fit:", a.FitReasons)
	writeSection(&b, "Pain Points:", a.PainPoints)
	writeSection(&b, "Sales Opportunities:", a.SalesOpportunities)
	writeSection(&b, "Talking Points:", a.TalkingPoints)
	writeSection(&b, "Automation Opportunities:", a.AutomationOpportunities)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, header string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + header + "\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
}
