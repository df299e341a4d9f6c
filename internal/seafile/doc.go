// Package seafile reads the file tree behind a Seafile share link.
//
// This package handles:
//   - Single file downloads through the share's files endpoint
//   - Folder listings scraped from the share's HTML pages
//   - Server-side folder archiving (request, poll, download, release)
//
// # Usage
//
//	client, err := seafile.New(seafile.Options{
//	    BaseURL: "https://seafile.example.org",
//	    Token:   "abc123",
//	})
//
//	data, err := client.FetchFile(ctx, "/docs/readme.txt")
//
//	refs, err := client.ListChildren(ctx, "/docs")
//
// # Archive Jobs
//
// ExportFolder drives the server's zip workflow: it requests a job
// token, polls progress until every entry is zipped, downloads the
// archive, and releases the job slot. Past acquisition the slot is
// released exactly once per token, also when polling or the download
// fails and when the surrounding run is cancelled. A server-side
// rejection surfaces as *NotExportableError and never holds a slot.
package seafile
