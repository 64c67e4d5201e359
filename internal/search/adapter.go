// Package search turns an ICP into a list of raw prospects using the places
// provider.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/resilience"
	"github.com/sells-group/prospecting-cli/pkg/places"
)

// Searcher discovers prospects matching an ICP. Implementations return the
// raw wave of prospect data: identity, address, rating, and (best effort)
// phone and website.
type Searcher interface {
	Search(ctx context.Context, icp model.ICP, maxResults int) ([]model.Prospect, error)
}

// PlacesSearcher implements Searcher on the Google Places text-search API.
type PlacesSearcher struct {
	client      places.Client
	detailRetry resilience.RetryConfig
}

// NewPlacesSearcher creates a PlacesSearcher.
func NewPlacesSearcher(client places.Client) *PlacesSearcher {
	return &PlacesSearcher{
		client: client,
		detailRetry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			ShouldRetry:    func(error) bool { return true },
		},
	}
}

// BuildQuery concatenates the ICP's business type, industry, and location
// into a text-search query, skipping empty parts.
func BuildQuery(icp model.ICP) string {
	var parts []string
	if icp.BusinessType != "" {
		parts = append(parts, icp.BusinessType)
	}
	if icp.Industry != "" {
		parts = append(parts, icp.Industry)
	}
	if icp.Location != "" {
		parts = append(parts, "in", icp.Location)
	}
	return strings.Join(parts, " ")
}

// Search runs the text search and enriches each hit with contact details.
// The search itself is the only fatal path; a failed details lookup leaves
// phone and website empty for that prospect.
func (s *PlacesSearcher) Search(ctx context.Context, icp model.ICP, maxResults int) ([]model.Prospect, error) {
	query := BuildQuery(icp)
	if query == "" {
		return nil, eris.New("search: icp produces an empty query")
	}

	resp, err := s.client.TextSearch(ctx, query, maxResults)
	if err != nil {
		return nil, eris.Wrap(err, "search: text search")
	}

	results := resp.Places
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	prospects := make([]model.Prospect, 0, len(results))
	for _, place := range results {
		p := model.Prospect{
			PlaceID:     place.ID,
			Name:        place.DisplayName.Text,
			Address:     place.FormattedAddress,
			Rating:      place.Rating,
			ReviewCount: place.UserRatingCount,
		}

		details, err := resilience.DoVal(ctx, s.detailRetry, func(ctx context.Context) (*places.PlaceDetails, error) {
			return s.client.Details(ctx, place.ID)
		})
		if err != nil {
			zap.L().Warn("search: details lookup failed",
				zap.String("place_id", place.ID),
				zap.String("name", p.Name),
				zap.Error(err),
			)
		} else {
			p.Phone = details.NationalPhoneNumber
			p.Website = details.WebsiteURI
		}

		prospects = append(prospects, p)
	}

	zap.L().Info("search: discovered prospects",
		zap.String("query", query),
		zap.Int("count", len(prospects)),
	)

	return prospects, nil
}
