// Package registry loads Ideal Customer Profiles from their two sources: a
// Notion database shared with the sales team, or a local YAML file.
package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/pkg/notion"
)

// LoadICPRegistry queries the Notion ICP database for all active profiles.
// Malformed pages are skipped with a warning so one bad row cannot block a
// run.
func LoadICPRegistry(ctx context.Context, client notion.Client, dbID string) ([]model.ICP, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: "Active",
			},
		},
	}

	pages, err := notion.QueryAll(ctx, client, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load icp registry")
	}

	var icps []model.ICP
	for _, p := range pages {
		icp, err := parseICPPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed icp page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		icps = append(icps, icp)
	}

	return icps, nil
}

// FindICP returns the ICP whose ID or name matches key.
func FindICP(icps []model.ICP, key string) (*model.ICP, error) {
	for i := range icps {
		if icps[i].ID == key || icps[i].Name == key {
			return &icps[i], nil
		}
	}
	return nil, eris.Errorf("registry: icp %q not found", key)
}

func parseICPPage(p notionapi.Page) (model.ICP, error) {
	icp := model.ICP{
		ID: string(p.ID),
	}

	// Name (title)
	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			icp.Name = plainText(tp.Title)
		}
	}

	// Industry (select)
	if prop, ok := p.Properties["Industry"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			icp.Industry = sp.Select.Name
		}
	}

	// BusinessType (rich_text)
	if prop, ok := p.Properties["BusinessType"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			icp.BusinessType = plainText(rtp.RichText)
		}
	}

	// Location (rich_text)
	if prop, ok := p.Properties["Location"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			icp.Location = plainText(rtp.RichText)
		}
	}

	// EmployeeRange (select)
	if prop, ok := p.Properties["EmployeeRange"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			icp.EmployeeRange = sp.Select.Name
		}
	}

	// RevenueRange (select)
	if prop, ok := p.Properties["RevenueRange"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			icp.RevenueRange = sp.Select.Name
		}
	}

	// PainPoints (multi_select)
	if prop, ok := p.Properties["PainPoints"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				icp.PainPoints = append(icp.PainPoints, opt.Name)
			}
		}
	}

	// BuyingSignals (multi_select)
	if prop, ok := p.Properties["BuyingSignals"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				icp.BuyingSignals = append(icp.BuyingSignals, opt.Name)
			}
		}
	}

	// OwnerID (rich_text)
	if prop, ok := p.Properties["OwnerID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			icp.OwnerID = plainText(rtp.RichText)
		}
	}

	if icp.Name == "" {
		return icp, eris.New("missing Name property")
	}
	if icp.Industry == "" && icp.BusinessType == "" {
		return icp, eris.New("missing Industry and BusinessType properties")
	}

	return icp, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
