package workload

import (
	"context"
	"strings"

	"github.com/clustermaster/clustermaster/domain/model"
)

const defaultSearchMax = 20

type SearchInput struct {
	Query string `json:"query"`
	// Max defaults to 20.
	Max int `json:"max,omitempty"`
}

type SearchOutput struct {
	Charts []*model.ChartInfo `json:"charts"`
}

// SearchCharts searches the registered repositories. Results are truncated
// to Max and carry the repository and chart names separately.
func (u *UseCase) SearchCharts(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
	if in == nil {
		in = &SearchInput{}
	}
	limit := in.Max
	if limit <= 0 {
		limit = defaultSearchMax
	}
	hits, err := u.ReleasePort.Search(ctx, in.Query)
	if err != nil {
		return nil, err
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for _, h := range hits {
		if h.Repo == "" || h.Chart == "" {
			h.Repo, h.Chart = splitChartName(h.Name)
		}
	}
	return &SearchOutput{Charts: hits}, nil
}

func splitChartName(name string) (repo, chart string) {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
