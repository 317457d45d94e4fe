package analytics

import (
	"context"
	"fmt"
	"net/url"

	"example.com/conversionsync/internal/domain"
)

type personsResponse struct {
	Results *[]domain.Person `json:"results"`
}

// LookupPersons returns the person records matching distinctID.
func (c *Client) LookupPersons(ctx context.Context, distinctID string) ([]domain.Person, error) {
	q := url.Values{}
	q.Set("distinct_id", distinctID)
	q.Set("token", c.projectToken)

	var res personsResponse
	if err := c.getJSON(ctx, c.baseURL+"/api/person/?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		return nil, fmt.Errorf("GET %s/api/person/: %w: no results array", c.baseURL, ErrMalformedResponse)
	}
	return *res.Results, nil
}
