// Package storage writes mirrored resources to their destination.
//
// The destination is a gocloud.dev blob bucket, so a mirror can target
// a local directory, an S3 or GCS bucket, or an in-memory bucket in
// tests, all through one URL scheme. Plain directory paths are a
// shorthand for the file driver.
//
// # Usage
//
//	sink, err := storage.Open(ctx, "/data/mirror")
//	defer sink.Close()
//
//	written, err := sink.Store(ctx, "docs/a.txt", data, false)
package storage
