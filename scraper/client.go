// scraper/client.go
package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client fetches survey index pages and archives over HTTP.
type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(timeout)
	// Archive links answer with a redirect to the storage host.
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &Client{http: client}
}

// FetchPage returns the body of pageURL. Any non-2xx status is an error.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	log.Printf("Scraper: Fetching %s\n", pageURL)

	res, err := c.http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to make GET request to %s: %w", pageURL, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("failed to fetch %s: received status code %d", pageURL, res.StatusCode())
	}
	return res.Body(), nil
}
