package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rgupta/feedbridge/internal/model"
)

// FetchCatalog downloads the gzip-compressed instrument catalog from url,
// decompresses it and parses the JSON array into instruments. Any network,
// status, decompression or parse failure surfaces as KindCatalogFetch.
func (c *Client) FetchCatalog(ctx context.Context, url string) ([]model.Instrument, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, wrapError(KindCatalogFetch, "create catalog request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapError(KindCatalogFetch, "catalog request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Kind:       KindCatalogFetch,
			Message:    "catalog fetch failed",
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, wrapError(KindCatalogFetch, "decompress catalog", err)
	}
	defer gz.Close()

	var instruments []model.Instrument
	if err := json.NewDecoder(gz).Decode(&instruments); err != nil {
		return nil, wrapError(KindCatalogFetch, "parse catalog", err)
	}

	c.logger.Info("catalog fetched",
		"instruments", len(instruments),
		"duration", time.Since(start),
	)

	return instruments, nil
}
