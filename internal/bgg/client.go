// Package bgg implements the BoardGameGeek XML API client used to pull play
// records and boardgame metadata.
package bgg

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gamechanger/internal/config"
)

// Client talks to the BGG XML API v2.
type Client struct {
	config     *config.BGGConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new BGG API client.
func NewClient(cfg *config.BGGConfig, logger *slog.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// MaxIDsPerRequest returns the hard per-call identifier limit of the /thing
// endpoint. Callers must chunk larger id sets or BGG silently drops entries.
func (c *Client) MaxIDsPerRequest() int {
	return c.config.MaxIDsPerRequest
}

// FetchPlays pages through the plays feed of a username until an empty page
// is returned and concatenates the results, newest first as BGG delivers them.
func (c *Client) FetchPlays(ctx context.Context, username string) ([]Play, error) {
	var plays []Play

	for page := 1; page <= c.config.MaxPages; page++ {
		params := url.Values{}
		params.Set("username", username)
		params.Set("page", strconv.Itoa(page))

		var envelope playsEnvelope
		if err := c.doGet(ctx, "plays", params, &envelope); err != nil {
			return nil, fmt.Errorf("fetching plays page %d: %w", page, err)
		}

		if len(envelope.Plays) == 0 {
			break
		}
		plays = append(plays, envelope.Plays...)
	}

	c.logger.Info("fetched plays from bgg", "username", username, "count", len(plays))
	return plays, nil
}

// FetchBoardgames fetches the full metadata of the given ids in one /thing
// call. The id set must not exceed MaxIDsPerRequest; chunking is the caller's
// job. BGG queues fresh requests and answers them with an empty item list, so
// the call is retried with a delay up to the configured attempt bound.
func (c *Client) FetchBoardgames(ctx context.Context, ids []int) ([]ThingItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > c.config.MaxIDsPerRequest {
		return nil, fmt.Errorf("requested %d ids, limit is %d", len(ids), c.config.MaxIDsPerRequest)
	}

	idList := make([]string, len(ids))
	for i, id := range ids {
		idList[i] = strconv.Itoa(id)
	}

	params := url.Values{}
	params.Set("stats", "1")
	params.Set("id", strings.Join(idList, ","))

	var lastErr error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		var envelope thingEnvelope
		err := c.doGet(ctx, "thing", params, &envelope)
		if err == nil && len(envelope.Items) > 0 {
			return envelope.Items, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("empty item list for ids %s", params.Get("id"))
		}
		c.logger.Warn("boardgame fetch attempt failed",
			"attempt", attempt,
			"ids", params.Get("id"),
			"error", lastErr,
		)

		if attempt < c.config.RetryAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("fetching boardgames after %d attempts: %w", c.config.RetryAttempts, lastErr)
}

// Search runs a free-text boardgame search.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("type", "boardgame")
	params.Set("query", query)

	var envelope searchEnvelope
	if err := c.doGet(ctx, "search", params, &envelope); err != nil {
		return nil, fmt.Errorf("searching boardgames: %w", err)
	}

	results := make([]SearchResult, 0, len(envelope.Items))
	for _, item := range envelope.Items {
		results = append(results, SearchResult{
			ID:      item.ID,
			Name:    item.Name.Value,
			Primary: item.Name.Type == "primary",
			Year:    item.Year.Value,
		})
	}
	return results, nil
}

// doGet performs one GET against an API endpoint and decodes the XML body.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	fullURL := fmt.Sprintf("%s/%s?%s", c.config.BaseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
