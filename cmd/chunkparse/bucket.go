package main

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
)

// openFile opens the directory of path as a bucket and returns the object
// name of the file within it.
func openFile(path string) (objstore.Bucket, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "resolve %s", path)
	}
	bkt, err := filesystem.NewBucket(filepath.Dir(abs))
	if err != nil {
		return nil, "", errors.Wrapf(err, "open directory of %s", path)
	}
	return bkt, filepath.Base(abs), nil
}
