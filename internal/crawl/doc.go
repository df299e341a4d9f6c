// Package crawl implements the concurrent crawl scheduler that mirrors
// a remote share tree into a storage sink.
//
// The tree is discovered lazily: folder contents are unknown until
// listed, and folders are preferably retrieved whole as server-packaged
// archives. The scheduler maintains a frontier of unresolved resources
// and repeatedly:
//   - pops a batch of up to Width entries off the frontier
//   - skips entries whose sink key already exists (unless overwriting)
//   - dispatches each remaining entry concurrently, files to the
//     direct download, folders to the archive export
//   - waits for the whole batch, then stores successes and resolves
//     failed folders by listing their children into the frontier
//
// Failed files and failed listings are terminal for their path; they
// are logged and counted but never abort the run. The frontier is only
// ever touched between batches on the scheduler's own goroutine, so no
// locking is involved.
//
// # Usage
//
//	sched := crawl.New(client, sink, crawl.Options{
//	    Width:     5,
//	    Overwrite: false,
//	    Logger:    logger,
//	})
//
//	stats, err := sched.Run(ctx, crawl.Root())
//	// err is non-nil only when ctx was cancelled
package crawl
