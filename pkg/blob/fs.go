package blob

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore serves a local directory tree as a blob store: each top-level
// directory under root is a bucket, file paths below it are keys. Used by the
// CLI and the tests; production deployments plug in their own Store.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed store rooted at dir.
func NewFSStore(root string) (*FSStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("blob root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob root %s is not a directory", root)
	}
	return &FSStore{root: root}, nil
}

// List walks the bucket directory and returns objects whose keys start with
// prefix, sorted by key.
func (s *FSStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	bucketDir := filepath.Join(s.root, filepath.Clean("/"+bucket))
	if _, err := os.Stat(bucketDir); err != nil {
		return nil, fmt.Errorf("bucket %s: %w", bucket, err)
	}

	var objects []Object
	err := filepath.WalkDir(bucketDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(bucketDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objects = append(objects, Object{
			Bucket:      bucket,
			Key:         key,
			ContentType: mime.TypeByExtension(filepath.Ext(key)),
			Size:        info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Read returns the raw bytes of an object.
func (s *FSStore) Read(ctx context.Context, obj Object) ([]byte, error) {
	path := filepath.Join(s.root, filepath.Clean("/"+obj.Bucket), filepath.Clean("/"+obj.Key))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return data, nil
}
