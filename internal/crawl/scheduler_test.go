package crawl

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubSource serves canned resources. Paths absent from a map fail the
// corresponding operation.
type stubSource struct {
	mu       sync.Mutex
	files    map[string][]byte
	archives map[string][]byte
	children map[string][]ResourceRef

	fileCalls   map[string]int
	exportCalls map[string]int
	listCalls   map[string]int

	// hooks run at the start of the corresponding operation when set
	onFetchFile    func(path string)
	onListChildren func(path string)
}

func newStubSource() *stubSource {
	return &stubSource{
		files:       map[string][]byte{},
		archives:    map[string][]byte{},
		children:    map[string][]ResourceRef{},
		fileCalls:   map[string]int{},
		exportCalls: map[string]int{},
		listCalls:   map[string]int{},
	}
}

func (s *stubSource) FetchFile(ctx context.Context, path string) ([]byte, error) {
	if s.onFetchFile != nil {
		s.onFetchFile(path)
	}
	s.mu.Lock()
	s.fileCalls[path]++
	data, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("file unavailable")
	}
	return data, nil
}

func (s *stubSource) ExportFolder(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	s.exportCalls[path]++
	data, ok := s.archives[path]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("not exportable")
	}
	return data, nil
}

func (s *stubSource) ListChildren(ctx context.Context, path string) ([]ResourceRef, error) {
	if s.onListChildren != nil {
		s.onListChildren(path)
	}
	s.mu.Lock()
	s.listCalls[path]++
	refs, ok := s.children[path]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("listing unavailable")
	}
	return refs, nil
}

// stubSink is an in-memory sink with the same overwrite semantics as
// the storage package.
type stubSink struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  map[string]int
}

func newStubSink() *stubSink {
	return &stubSink{objects: map[string][]byte{}, writes: map[string]int{}}
}

func (s *stubSink) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *stubSink) Store(ctx context.Context, key string, data []byte, overwrite bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok && !overwrite {
		return false, nil
	}
	s.objects[key] = data
	s.writes[key]++
	return true, nil
}

func TestRunEndToEnd(t *testing.T) {
	src := newStubSource()
	src.children["/"] = []ResourceRef{
		{Path: "/a.txt", Name: "a.txt", Kind: KindFile},
		{Path: "/sub", Name: "sub", Kind: KindFolder},
	}
	src.files["/a.txt"] = []byte("file contents")
	src.archives["/sub"] = []byte("archive bytes")
	// the root itself is not exportable, forcing descent

	sink := newStubSink()
	sched := New(src, sink, Options{Width: 5})

	stats, err := sched.Run(context.Background(), Root())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.objects["a.txt"]; !bytes.Equal(got, []byte("file contents")) {
		t.Errorf("a.txt: got %q", got)
	}
	if got := sink.objects["sub.zip"]; !bytes.Equal(got, []byte("archive bytes")) {
		t.Errorf("sub.zip: got %q", got)
	}
	if sink.writes["a.txt"] != 1 || sink.writes["sub.zip"] != 1 {
		t.Errorf("expected exactly one write each, got %v", sink.writes)
	}

	if src.exportCalls["/"] != 1 || src.exportCalls["/sub"] != 1 {
		t.Errorf("unexpected export calls: %v", src.exportCalls)
	}
	if src.fileCalls["/a.txt"] != 1 {
		t.Errorf("unexpected file calls: %v", src.fileCalls)
	}
	if src.listCalls["/"] != 1 {
		t.Errorf("unexpected list calls: %v", src.listCalls)
	}

	if stats.FilesStored != 1 || stats.ArchivesStored != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Discovered != 2 {
		t.Errorf("expected 2 discovered, got %d", stats.Discovered)
	}
	if stats.Failed != 0 {
		t.Errorf("expected no terminal failures, got %d", stats.Failed)
	}
}

func TestBatchBarrier(t *testing.T) {
	var slowDone atomic.Bool
	var descentBeforeSlow atomic.Bool

	src := newStubSource()
	src.children["/"] = []ResourceRef{
		{Path: "/slow.txt", Kind: KindFile},
		{Path: "/bad", Kind: KindFolder},
	}
	src.files["/slow.txt"] = []byte("slow")
	src.children["/bad"] = []ResourceRef{} // descend succeeds, no children

	src.onFetchFile = func(path string) {
		if path == "/slow.txt" {
			time.Sleep(200 * time.Millisecond)
			slowDone.Store(true)
		}
	}
	src.onListChildren = func(path string) {
		if path == "/bad" && !slowDone.Load() {
			descentBeforeSlow.Store(true)
		}
	}

	sink := newStubSink()
	sched := New(src, sink, Options{Width: 2})

	if _, err := sched.Run(context.Background(), Root()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if descentBeforeSlow.Load() {
		t.Error("descent started before the whole batch had completed")
	}
	if src.listCalls["/bad"] != 1 {
		t.Errorf("expected one descent for /bad, got %d", src.listCalls["/bad"])
	}
}

func TestDescendWithPendingSiblings(t *testing.T) {
	src := newStubSource()
	src.children["/"] = []ResourceRef{
		{Path: "/bad", Name: "bad", Kind: KindFolder},
		{Path: "/good.txt", Name: "good.txt", Kind: KindFile},
	}
	src.children["/bad"] = []ResourceRef{
		{Path: "/bad/x.txt", Name: "x.txt", Kind: KindFile},
		{Path: "/bad/y.txt", Name: "y.txt", Kind: KindFile},
	}
	src.files["/good.txt"] = []byte("good")
	src.files["/bad/x.txt"] = []byte("x")
	src.files["/bad/y.txt"] = []byte("y")
	// neither the root nor /bad is exportable, so /bad descends in the
	// same batch whose other entry still has a result to fold

	sink := newStubSink()
	sched := New(src, sink, Options{Width: 2})

	stats, err := sched.Run(context.Background(), Root())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]string{
		"good.txt":  "good",
		"bad/x.txt": "x",
		"bad/y.txt": "y",
	}
	if len(sink.objects) != len(want) {
		t.Errorf("expected %d stored objects, got %v", len(want), sink.objects)
	}
	for key, data := range want {
		if got := sink.objects[key]; !bytes.Equal(got, []byte(data)) {
			t.Errorf("%s: got %q, want %q", key, got, data)
		}
	}
	if stats.FilesStored != 3 || stats.Skipped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestIdempotentSkip(t *testing.T) {
	src := newStubSource()
	src.files["/a.txt"] = []byte("new bytes")

	sink := newStubSink()
	sink.objects["a.txt"] = []byte("old bytes")

	sched := New(src, sink, Options{})
	stats, err := sched.Run(context.Background(), ResourceRef{Path: "/a.txt", Kind: KindFile})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if src.fileCalls["/a.txt"] != 0 {
		t.Errorf("existing resource was re-fetched %d times", src.fileCalls["/a.txt"])
	}
	if got := sink.objects["a.txt"]; !bytes.Equal(got, []byte("old bytes")) {
		t.Errorf("existing bytes were changed: %q", got)
	}
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skip, got %d", stats.Skipped)
	}
}

func TestOverwriteRefetches(t *testing.T) {
	src := newStubSource()
	src.files["/a.txt"] = []byte("new bytes")

	sink := newStubSink()
	sink.objects["a.txt"] = []byte("old bytes")

	sched := New(src, sink, Options{Overwrite: true})
	stats, err := sched.Run(context.Background(), ResourceRef{Path: "/a.txt", Kind: KindFile})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if src.fileCalls["/a.txt"] != 1 {
		t.Errorf("expected one fetch, got %d", src.fileCalls["/a.txt"])
	}
	if got := sink.objects["a.txt"]; !bytes.Equal(got, []byte("new bytes")) {
		t.Errorf("expected replacement bytes, got %q", got)
	}
	if stats.FilesStored != 1 {
		t.Errorf("expected 1 file stored, got %d", stats.FilesStored)
	}
}

func TestFailedFileIsTerminal(t *testing.T) {
	src := newStubSource()
	// no file registered, the fetch fails

	sink := newStubSink()
	sched := New(src, sink, Options{})

	stats, err := sched.Run(context.Background(), ResourceRef{Path: "/gone.txt", Kind: KindFile})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(src.listCalls) != 0 {
		t.Errorf("a failed file must not be descended, got list calls %v", src.listCalls)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failed)
	}
	if len(sink.objects) != 0 {
		t.Errorf("nothing should have been stored, got %v", sink.objects)
	}
}

func TestListingFailureIsTerminal(t *testing.T) {
	src := newStubSource()
	// root is neither exportable nor listable

	sink := newStubSink()
	sched := New(src, sink, Options{})

	stats, err := sched.Run(context.Background(), Root())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failed)
	}
	if len(sink.objects) != 0 {
		t.Errorf("nothing should have been stored, got %v", sink.objects)
	}
}

func TestWidthBound(t *testing.T) {
	var cur, peak atomic.Int32

	src := newStubSource()
	refs := []ResourceRef{}
	for _, p := range []string{"/1", "/2", "/3", "/4", "/5", "/6"} {
		src.files[p] = []byte(p)
		refs = append(refs, ResourceRef{Path: p, Kind: KindFile})
	}
	src.children["/"] = refs
	src.onFetchFile = func(path string) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		cur.Add(-1)
	}

	sink := newStubSink()
	sched := New(src, sink, Options{Width: 2})

	if _, err := sched.Run(context.Background(), Root()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p := peak.Load(); p > 2 {
		t.Errorf("concurrency exceeded width: peak %d", p)
	}
	if len(sink.objects) != 6 {
		t.Errorf("expected 6 stored files, got %d", len(sink.objects))
	}
}

func TestCancelledBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := New(newStubSource(), newStubSink(), Options{})
	_, err := sched.Run(ctx, Root())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newStubSource()
	src.children["/"] = []ResourceRef{
		{Path: "/x.txt", Kind: KindFile},
	}
	src.onFetchFile = func(path string) { cancel() }
	// /x.txt is not registered, so after cancel the failure must not
	// trigger a descent

	sink := newStubSink()
	sched := New(src, sink, Options{})

	_, err := sched.Run(ctx, Root())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if src.listCalls["/x.txt"] != 0 {
		t.Errorf("descent ran on a cancelled run: %v", src.listCalls)
	}
}

func TestRootArchiveKey(t *testing.T) {
	src := newStubSource()
	src.archives["/"] = []byte("whole share")

	sink := newStubSink()
	sched := New(src, sink, Options{})

	if _, err := sched.Run(context.Background(), Root()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.objects[".zip"]; !bytes.Equal(got, []byte("whole share")) {
		t.Errorf("expected root archive under key %q, got objects %v", ".zip", sink.objects)
	}
}
