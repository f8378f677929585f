package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

const positionsPageSize = 500

// DataClient reads wallet holdings from the Data API.
type DataClient struct {
	rest restClient
}

// NewDataClient creates a client for baseURL (e.g. "https://data-api.polymarket.com").
func NewDataClient(baseURL string, rps float64) *DataClient {
	return &DataClient{rest: newRESTClient(baseURL, rps)}
}

// Positions returns every open holding of user, following pagination.
func (d *DataClient) Positions(ctx context.Context, user string) ([]domain.Holding, error) {
	var out []domain.Holding
	for offset := 0; ; offset += positionsPageSize {
		q := url.Values{}
		q.Set("user", user)
		q.Set("sizeThreshold", "0.01")
		q.Set("limit", strconv.Itoa(positionsPageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page []apiPosition
		if err := d.rest.getJSON(ctx, "/positions?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("polymarket/data: positions: %w", err)
		}
		for _, p := range page {
			if p.Asset == "" || p.Size <= 0 {
				continue
			}
			out = append(out, p.toHolding())
		}
		if len(page) < positionsPageSize {
			return out, nil
		}
	}
}
