package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	_ "gocloud.dev/blob/memblob"
)

func TestOpenPlainPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sink, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	written, err := sink.Store(ctx, "docs/a.txt", []byte("hello"), false)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !written {
		t.Error("expected written=true for a fresh key")
	}

	got, err := os.ReadFile(filepath.Join(dir, "docs", "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("got %q", got)
	}
}

func TestOpenBucketURL(t *testing.T) {
	ctx := context.Background()

	sink, err := Open(ctx, "mem://")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	if _, err := sink.Store(ctx, "a.txt", []byte("x"), false); err != nil {
		t.Fatalf("Store: %v", err)
	}
	exists, err := sink.Exists(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected stored key to exist")
	}
}

func TestStoreSkipsExisting(t *testing.T) {
	ctx := context.Background()

	sink, err := Open(ctx, "mem://")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	if _, err := sink.Store(ctx, "a.txt", []byte("first"), false); err != nil {
		t.Fatalf("Store: %v", err)
	}
	written, err := sink.Store(ctx, "a.txt", []byte("second"), false)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if written {
		t.Error("expected written=false for an existing key")
	}
}

func TestStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sink, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	if _, err := sink.Store(ctx, "a.txt", []byte("first"), false); err != nil {
		t.Fatalf("Store: %v", err)
	}
	written, err := sink.Store(ctx, "a.txt", []byte("second"), true)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !written {
		t.Error("expected written=true with overwrite")
	}

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("got %q", got)
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()

	sink, err := Open(ctx, "mem://")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	exists, err := sink.Exists(ctx, "missing.txt")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected missing key to not exist")
	}
}
