package seafile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FetchFile downloads a single file from the share.
func (c *Client) FetchFile(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.fetcher.Get(ctx, c.fileURL(path))
	if err != nil {
		return nil, err
	}
	if !statusOK(resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("seafile: file %q: unexpected status %d", path, resp.StatusCode)
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("seafile: file %q: read body: %w", path, err)
	}

	c.logger.Debug("fetched file",
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return data, nil
}
