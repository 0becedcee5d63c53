package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/jina"
)

// WebSearchSource discovers targets from Jina web search results.
type WebSearchSource struct {
	client jina.Client
}

// NewWebSearchSource creates a WebSearchSource.
func NewWebSearchSource(client jina.Client) *WebSearchSource {
	return &WebSearchSource{client: client}
}

func (s *WebSearchSource) Name() string { return "jina_search" }

// Discover runs the market queries and keeps every result with a URL.
// Result titles often carry a tagline after a separator; only the part
// before it is used as the display name.
func (s *WebSearchSource) Discover(ctx context.Context, req model.LeadRequest) ([]model.Target, error) {
	var (
		targets []model.Target
		ok      int
		lastErr error
	)
	for _, q := range Queries(req) {
		if ctx.Err() != nil {
			return targets, ctx.Err()
		}
		resp, err := s.client.Search(ctx, q)
		if err != nil {
			zap.L().Debug("web search: query failed", zap.String("query", q), zap.Error(err))
			lastErr = err
			continue
		}
		ok++
		for _, r := range resp.Data {
			if r.URL == "" {
				continue
			}
			targets = append(targets, model.NewTarget(siteRoot(r.URL), titleName(r.Title)))
		}
	}
	if ok == 0 && lastErr != nil {
		return targets, lastErr
	}
	return targets, nil
}

func titleName(title string) string {
	for _, sep := range []string{" | ", " - ", " – ", ": "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	return strings.TrimSpace(title)
}
