package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Source is the share being mirrored (for display).
	Source string

	// Target is where retrieved resources are written (for display).
	Target string

	// Workers is the concurrency width (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to print a progress line.
	// Default: 5s
	UpdateInterval time.Duration
}

// Reporter outputs human-readable crawl progress.
type Reporter struct {
	opts Options

	files    atomic.Int64
	archives atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
	bytes    atomic.Int64
	pending  atomic.Int64

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 5 * time.Second
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[seafile-scraper] Mirroring share %s -> %s | workers: %d\n",
		r.opts.Source,
		r.opts.Target,
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final summary.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
}

// FileStored records one file written to storage.
func (r *Reporter) FileStored(size int64) {
	r.files.Add(1)
	r.bytes.Add(size)
}

// ArchiveStored records one folder archive written to storage.
func (r *Reporter) ArchiveStored(size int64) {
	r.archives.Add(1)
	r.bytes.Add(size)
}

// Skipped records a resource left untouched because it already exists.
func (r *Reporter) Skipped() {
	r.skipped.Add(1)
}

// Failed records a resource that could not be retrieved.
func (r *Reporter) Failed() {
	r.failed.Add(1)
}

// SetPending records the current frontier size.
func (r *Reporter) SetPending(n int64) {
	r.pending.Store(n)
}

// updateLoop periodically prints a progress line.
func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	stored := r.bytes.Load()

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	bytesThisPeriod := stored - r.lastBytes
	speed := float64(bytesThisPeriod) / elapsed

	r.lastUpdate = now
	r.lastBytes = stored

	fmt.Fprintf(r.opts.Output, "[seafile-scraper] %s | files: %d | archives: %d | skipped: %d | failed: %d | pending: %d | %s (%s/s)\n",
		formatDuration(now.Sub(r.startTime)),
		r.files.Load(),
		r.archives.Load(),
		r.skipped.Load(),
		r.failed.Load(),
		r.pending.Load(),
		FormatBytes(stored),
		FormatBytes(int64(speed)),
	)
}

// printFinalStatus outputs the final summary.
func (r *Reporter) printFinalStatus() {
	stored := r.bytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(stored) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "[seafile-scraper] Done in %s | files: %d | archives: %d | skipped: %d | failed: %d | %s (%s/s avg)\n",
		formatDuration(duration),
		r.files.Load(),
		r.archives.Load(),
		r.skipped.Load(),
		r.failed.Load(),
		FormatBytes(stored),
		FormatBytes(int64(avgSpeed)),
	)
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
