// Package pricing talks to the external price-comparison API. The rest of
// the system depends only on the Source interface so the upstream can be
// swapped or faked in tests.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dealwatch/internal/apperrors"

	retry "github.com/codeGROOVE-dev/retry-go"
	"github.com/go-resty/resty/v2"
)

// Quote is a single retailer price observation for a product.
type Quote struct {
	ProductID  string    `json:"product_id"`
	Retailer   string    `json:"retailer_name"`
	Price      float64   `json:"price"`
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at"`
}

// Source returns the current retailer quotes for a product. A call either
// yields the full quote set or an error; partial results are never returned.
type Source interface {
	FetchQuotes(ctx context.Context, productID string) ([]Quote, error)
}

type Client struct {
	baseURL  string
	apiToken string
	client   *resty.Client
}

func NewClient(baseURL, apiToken string) *Client {
	client := resty.New()
	client.SetTimeout(10 * time.Second)

	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   client,
	}
}

type quoteResponse struct {
	Data []struct {
		RetailerName string  `json:"retailer_name"`
		Price        float64 `json:"price"`
		URL          string  `json:"url"`
	} `json:"data"`
}

// FetchQuotes queries the comparison API for the product's current retailer
// prices. Transient upstream failures are retried a few times with backoff;
// a call that still fails is reported as ErrUpstreamUnavailable so the
// monitor can skip the item rather than abort the evaluation.
func (c *Client) FetchQuotes(ctx context.Context, productID string) ([]Quote, error) {
	url := fmt.Sprintf("%s/products/%s/quotes", c.baseURL, productID)

	var body []byte
	err := retry.Do(
		func() error {
			resp, err := c.client.R().
				SetContext(ctx).
				SetHeader("ApiToken", c.apiToken).
				Get(url)
			if err != nil {
				return err
			}
			if resp.StatusCode() == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("product %s unknown upstream", productID))
			}
			if resp.StatusCode() != http.StatusOK {
				return fmt.Errorf("quote API returned status %d", resp.StatusCode())
			}
			body = resp.Body()
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching quotes for %s: %v", apperrors.ErrUpstreamUnavailable, productID, err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding quote response: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	observedAt := time.Now()
	quotes := make([]Quote, 0, len(parsed.Data))
	for _, q := range parsed.Data {
		quotes = append(quotes, Quote{
			ProductID:  productID,
			Retailer:   q.RetailerName,
			Price:      q.Price,
			URL:        q.URL,
			ObservedAt: observedAt,
		})
	}
	return quotes, nil
}
