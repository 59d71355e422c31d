package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// CleanName normalizes an object name and rejects names that are empty or
// that would escape their bucket.
//
// Example:
//
//	name:   "/abc/abc-123/../abc-123/obj"
//	result: "abc/abc-123/obj"
func CleanName(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}

	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidName
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", ErrInvalidName
	}

	return cleaned, nil
}

// ComputePath generates the local path of an object.
// Object names are already sharded by owner ("abc/abc.../object"), so the
// path mirrors the name below the bucket directory.
//
// Example:
//
//	basePath: "/data"
//	bucket:   "storage"
//	name:     "3f2/3f2a.../9bc1..."
//	result:   "/data/storage/3f2/3f2a.../9bc1..."
func ComputePath(basePath, bucket, name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(basePath, bucket, filepath.FromSlash(cleaned)), nil
}
