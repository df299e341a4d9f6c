// Package progress provides progress reporting for crawl runs.
//
// The remote tree is discovered lazily, so there is no total to report
// a percentage against. The reporter instead prints periodic lines with
// outcome counters and the current frontier size, plus a final summary
// when stopped.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    Source:  token,
//	    Target:  outputDir,
//	    Workers: 5,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as resources resolve
//	reporter.FileStored(int64(len(data)))
//	reporter.SetPending(int64(frontierSize))
//
// # Output Format
//
//	[seafile-scraper] Mirroring share f03ab4 -> ./mirror | workers: 5
//	[seafile-scraper] 1m 5s | files: 48 | archives: 3 | skipped: 12 | failed: 1 | pending: 9 | 14.52 MB (213.70 KB/s)
//	[seafile-scraper] Done in 2m 18s | files: 71 | archives: 4 | skipped: 12 | failed: 2 | 31.96 MB (236.87 KB/s avg)
package progress
