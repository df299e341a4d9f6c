package seafile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// releaseTimeout bounds the archive release call so a cancelled run
// still frees its server slot.
const releaseTimeout = 30 * time.Second

// NotExportableError is returned when the server refuses to archive a
// folder, typically because its contents exceed the server's size cap.
type NotExportableError struct {
	Path    string
	Message string
}

func (e *NotExportableError) Error() string {
	return fmt.Sprintf("seafile: folder %q cannot be archived: %s", e.Path, e.Message)
}

type exportStatus int

const (
	exportPolling exportStatus = iota
	exportReady
	exportFailed
)

func (s exportStatus) String() string {
	switch s {
	case exportPolling:
		return "polling"
	case exportReady:
		return "ready"
	case exportFailed:
		return "failed"
	}
	return "unknown"
}

// exportSession tracks one server-side archive job. A session exists
// only once the server has handed out a job token.
type exportSession struct {
	path   string
	token  string
	status exportStatus
	zipped int
	total  int
}

type exportInitResponse struct {
	ZipToken string `json:"zip_token"`
	ErrorMsg string `json:"error_msg"`
}

type exportProgressResponse struct {
	Zipped int `json:"zipped"`
	Total  int `json:"total"`
}

// ExportFolder archives a folder on the server and downloads the
// archive. Past acquisition the server-side job slot is released when
// the function returns, whatever the outcome.
func (c *Client) ExportFolder(ctx context.Context, path string) ([]byte, error) {
	sess, err := c.initiateExport(ctx, path)
	if err != nil {
		return nil, err
	}
	defer c.releaseExport(ctx, sess)

	if err := c.awaitExport(ctx, sess); err != nil {
		sess.status = exportFailed
		return nil, err
	}
	sess.status = exportReady

	data, err := c.fetchArchive(ctx, sess)
	if err != nil {
		sess.status = exportFailed
		return nil, err
	}
	return data, nil
}

// initiateExport asks the server to start archiving the folder. A 400
// response is a rejection, not an outage: the server names a reason and
// holds no job slot for it.
func (c *Client) initiateExport(ctx context.Context, path string) (*exportSession, error) {
	resp, err := c.fetcher.Get(ctx, c.exportInitURL(path), http.StatusBadRequest)
	if err != nil {
		return nil, err
	}
	if !statusOK(resp) && resp.StatusCode != http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("seafile: export %q: unexpected status %d", path, resp.StatusCode)
	}

	rejected := resp.StatusCode == http.StatusBadRequest
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("seafile: export %q: read body: %w", path, err)
	}

	var init exportInitResponse
	if err := json.Unmarshal(body, &init); err != nil {
		return nil, fmt.Errorf("seafile: export %q: decode response: %w", path, err)
	}

	if rejected {
		return nil, &NotExportableError{Path: path, Message: init.ErrorMsg}
	}
	if init.ZipToken == "" {
		return nil, fmt.Errorf("seafile: export %q: response carries no job token", path)
	}

	c.logger.Debug("export started",
		zap.String("path", path),
		zap.String("zip_token", init.ZipToken))
	return &exportSession{path: path, token: init.ZipToken, status: exportPolling}, nil
}

// awaitExport polls the job until every entry is zipped.
func (c *Client) awaitExport(ctx context.Context, sess *exportSession) error {
	for {
		progress, err := c.exportProgress(ctx, sess)
		if err != nil {
			return err
		}
		sess.zipped, sess.total = progress.Zipped, progress.Total

		c.logger.Debug("export progress",
			zap.String("path", sess.path),
			zap.Int("zipped", progress.Zipped),
			zap.Int("total", progress.Total))

		if progress.Zipped == progress.Total {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) exportProgress(ctx context.Context, sess *exportSession) (exportProgressResponse, error) {
	var progress exportProgressResponse

	resp, err := c.fetcher.Get(ctx, c.exportProgressURL(sess.token))
	if err != nil {
		return progress, err
	}
	if !statusOK(resp) {
		resp.Body.Close()
		return progress, fmt.Errorf("seafile: export %q: progress status %d", sess.path, resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return progress, fmt.Errorf("seafile: export %q: read progress: %w", sess.path, err)
	}
	if err := json.Unmarshal(body, &progress); err != nil {
		return progress, fmt.Errorf("seafile: export %q: decode progress: %w", sess.path, err)
	}
	return progress, nil
}

// fetchArchive downloads the finished archive.
func (c *Client) fetchArchive(ctx context.Context, sess *exportSession) ([]byte, error) {
	resp, err := c.fetcher.Get(ctx, c.archiveURL(sess.token))
	if err != nil {
		return nil, err
	}
	if !statusOK(resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("seafile: export %q: archive status %d", sess.path, resp.StatusCode)
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("seafile: export %q: read archive: %w", sess.path, err)
	}
	return data, nil
}

// releaseExport frees the server-side job slot. It runs on a context
// detached from the caller's so a cancelled crawl still releases the
// slot, bounded by releaseTimeout.
func (c *Client) releaseExport(ctx context.Context, sess *exportSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	resp, err := c.fetcher.PostForm(ctx, c.releaseURL(), url.Values{"token": {sess.token}})
	if err != nil {
		c.logger.Warn("export release failed",
			zap.String("path", sess.path),
			zap.Error(err))
		return
	}
	resp.Body.Close()

	c.logger.Debug("export released",
		zap.String("path", sess.path),
		zap.String("status", sess.status.String()),
		zap.Int("zipped", sess.zipped),
		zap.Int("total", sess.total))
}
