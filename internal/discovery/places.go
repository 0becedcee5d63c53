package discovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/google"
)

const (
	// maxPagesPerQuery limits pagination to avoid excessive API costs.
	maxPagesPerQuery = 2
	placesPageSize   = 20
)

// PlacesSource discovers targets with Google Places text search. Places
// without a website are skipped.
type PlacesSource struct {
	google  google.Client
	limiter *rate.Limiter
}

// NewPlacesSource creates a PlacesSource limited to ratePerSec calls.
func NewPlacesSource(g google.Client, ratePerSec float64) *PlacesSource {
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	return &PlacesSource{
		google:  g,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

func (s *PlacesSource) Name() string { return "google_places" }

// Discover runs every market query and collects places with websites.
func (s *PlacesSource) Discover(ctx context.Context, req model.LeadRequest) ([]model.Target, error) {
	var (
		targets []model.Target
		ok      int
		lastErr error
	)
	queries := Queries(req)
	for _, q := range queries {
		found, err := s.search(ctx, q)
		targets = append(targets, found...)
		if err != nil {
			zap.L().Debug("places: query failed", zap.String("query", q), zap.Error(err))
			lastErr = err
			continue
		}
		ok++
	}
	if ok == 0 && lastErr != nil {
		return targets, lastErr
	}
	return targets, nil
}

func (s *PlacesSource) search(ctx context.Context, query string) ([]model.Target, error) {
	var (
		targets   []model.Target
		pageToken string
	)
	for page := 0; page < maxPagesPerQuery; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return targets, eris.Wrap(err, "places: rate limit wait")
		}

		resp, err := s.google.TextSearch(ctx, google.TextSearchRequest{
			TextQuery: query,
			PageSize:  placesPageSize,
			PageToken: pageToken,
		})
		if err != nil {
			return targets, eris.Wrap(err, "places: text search")
		}

		for _, place := range resp.Places {
			if place.WebsiteURI == "" {
				continue
			}
			targets = append(targets, model.NewTarget(siteRoot(place.WebsiteURI), place.DisplayName.Text))
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return targets, nil
}
