// Package freeway downloads per-minute VDLive archives from the freeway
// bureau's history host.
package freeway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// Client fetches one minute's compressed payload over HTTP. The http.Client
// timeout is the per-attempt timeout; retrying is the fetcher's concern.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an archive client for the given history host base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// PayloadURL is the deterministic archive location for one minute of one day.
func (c *Client) PayloadURL(day domain.DaySpec, slot domain.MinuteSlot) string {
	return fmt.Sprintf("%s/%s/VDLive_%s.xml.gz", c.baseURL, day.Label(), slot.Label())
}

// FetchPayload downloads one minute's compressed payload. Any non-200
// response is a transport error; size validation happens in the fetcher.
func (c *Client) FetchPayload(ctx context.Context, day domain.DaySpec, slot domain.MinuteSlot) ([]byte, error) {
	u := c.PayloadURL(day, slot)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", slot.Label(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", slot.Label(), resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", slot.Label(), err)
	}
	return payload, nil
}
