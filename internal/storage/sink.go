package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"gocloud.dev/blob"

	// plain directory paths open through the file driver
	_ "gocloud.dev/blob/fileblob"
)

// Sink writes crawled resources to a blob bucket.
type Sink struct {
	bucket *blob.Bucket
}

// Open opens the mirror destination. The target is either a gocloud
// bucket URL (file:///data/mirror, s3://bucket/prefix, mem://) or a
// plain directory path, which opens through the file driver with
// missing directories created on demand and no metadata sidecar files.
func Open(ctx context.Context, target string) (*Sink, error) {
	bucketURL := target
	if u, err := url.Parse(target); err != nil || u.Scheme == "" {
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, fmt.Errorf("storage: resolve path %q: %w", target, err)
		}
		fileURL := url.URL{
			Scheme:   "file",
			Path:     abs,
			RawQuery: "create_dir=true&metadata=skip",
		}
		bucketURL = fileURL.String()
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", target, err)
	}
	return &Sink{bucket: bucket}, nil
}

// Exists reports whether an object is already present under key.
func (s *Sink) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("storage: check %q: %w", key, err)
	}
	return exists, nil
}

// Store writes data under key. When overwrite is false and the key is
// already present, the write is skipped and Store reports written=false.
func (s *Sink) Store(ctx context.Context, key string, data []byte, overwrite bool) (bool, error) {
	if !overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return false, fmt.Errorf("storage: write %q: %w", key, err)
	}
	return true, nil
}

// Close releases the underlying bucket.
func (s *Sink) Close() error {
	return s.bucket.Close()
}
