// Package fetch provides the retrying HTTP primitive the crawl engine is
// built on.
//
// This package handles:
//   - GET and form POST with a bounded number of retries
//   - Fixed backoff between attempts, cancellable via context
//   - Acceptable failure codes: listed non-2xx statuses are handed back
//     to the caller instead of being retried
//   - Returning the last received response once retries are exhausted,
//     so callers can inspect the final status themselves
//
// A request that never produced a response fails with ErrUnreachable; a
// request URL that cannot be parsed fails immediately with
// ErrMalformedRequest and is never retried.
//
// # Usage
//
//	client := fetch.NewClient(fetch.Options{
//	    Timeout:    60 * time.Second,
//	    MaxRetries: 5,
//	    Backoff:    10 * time.Second,
//	})
//
//	resp, err := client.Get(ctx, url, http.StatusBadRequest)
//	if err != nil {
//	    // no response was ever received
//	}
//	defer resp.Body.Close()
//	// resp.StatusCode may be 400 here; the caller decides what it means
package fetch
