package tsa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"

	"github.com/digitorus/timestamp"
)

// Client requests RFC 3161 timestamp tokens from an external TSA over
// HTTP.
type Client struct {
	URL    string
	Client *http.Client
}

func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Timestamp(ctx context.Context, digest []byte, hash domain.HashAlgorithm) (*usecase.TimestampToken, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("%w: no tsa configured", domain.ErrTimestampUnavailable)
	}
	req := &timestamp.Request{
		HashAlgorithm: hash.CryptoHash(),
		HashedMessage: digest,
		Certificates:  true,
	}
	reqBytes, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/timestamp-query")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimestampUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tsa status %s", domain.ErrTimestampUnavailable, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read tsa response: %w", err)
	}

	parsed, err := timestamp.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrTimestampUnavailable, err)
	}
	if !bytes.Equal(parsed.HashedMessage, digest) {
		return nil, fmt.Errorf("%w: token covers a different digest", domain.ErrTimestampUnavailable)
	}

	serial := ""
	if parsed.SerialNumber != nil {
		serial = parsed.SerialNumber.String()
	}
	return &usecase.TimestampToken{
		Raw:      body,
		GenTime:  parsed.Time,
		SerialNo: serial,
	}, nil
}

var _ usecase.TimestampAuthority = (*Client)(nil)
