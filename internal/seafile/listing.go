package seafile

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lysogeny/seafile-scraper/internal/crawl"
)

// ListChildren fetches the HTML listing of a folder and returns the
// files and folders it contains, files first.
func (c *Client) ListChildren(ctx context.Context, path string) ([]crawl.ResourceRef, error) {
	resp, err := c.fetcher.Get(ctx, c.listingURL(path))
	if err != nil {
		return nil, err
	}
	if !statusOK(resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("seafile: listing %q: unexpected status %d", path, resp.StatusCode)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("seafile: listing %q: parse: %w", path, err)
	}

	refs := parseListing(doc)
	c.logger.Debug("listed folder",
		zap.String("path", path),
		zap.Int("children", len(refs)))
	return refs, nil
}

// parseListing extracts child resources from a share listing page.
// Rows carrying the file-item class are files, the remaining rows with
// a share link are folders. Anchors without a p query parameter carry
// no share path and are ignored.
func parseListing(doc *goquery.Document) []crawl.ResourceRef {
	var refs []crawl.ResourceRef
	collect := func(selector string, kind crawl.Kind) {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			p := pathParam(href)
			if p == "" {
				return
			}
			refs = append(refs, crawl.ResourceRef{
				Path: p,
				Name: strings.TrimSpace(sel.Text()),
				Kind: kind,
			})
		})
	}
	collect("tr.file-item a.normal", crawl.KindFile)
	collect("tr:not(.file-item) a.normal", crawl.KindFolder)
	return refs
}

// pathParam extracts the p query parameter from a listing link.
func pathParam(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("p")
}
