// Package objects lists and filters the schema metadata objects the import
// workflow works from.
package objects

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
)

// ObjectStore lists the objects stored under a location.
type ObjectStore interface {
	List(ctx context.Context, location, prefix string) ([]models.ObjectRef, error)
}

// DirStore is an ObjectStore over the local filesystem. A location is a root
// directory; object keys are slash separated paths relative to it and every
// directory is reported as a zero sized "<dir>/" marker.
type DirStore struct {
	// Root, when set, is prepended to relative locations.
	Root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

func (s *DirStore) List(ctx context.Context, location, prefix string) ([]models.ObjectRef, error) {
	root := location
	if s.Root != "" && !filepath.IsAbs(location) {
		root = filepath.Join(s.Root, location)
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, protocol.DomainInvalid(fmt.Errorf("location %q does not exist", location))
		}

		return nil, protocol.Transient(fmt.Errorf("stat location %q: %w", location, err))
	}

	if !info.IsDir() {
		return nil, protocol.DomainInvalid(fmt.Errorf("location %q is not a directory", location))
	}

	refs := []models.ObjectRef{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)

		if d.IsDir() {
			key += "/"
			// Skip subtrees that cannot contain a key with prefix.
			if !strings.HasPrefix(key, prefix) && !strings.HasPrefix(prefix, key) {
				return filepath.SkipDir
			}
		}

		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		ref := models.ObjectRef{Key: key}

		if !d.IsDir() {
			fi, err := d.Info()
			if err != nil {
				return err
			}

			ref.Size = fi.Size()
			ref.LastModified = fi.ModTime().UTC()
		}

		refs = append(refs, ref)

		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}

		return nil, protocol.Transient(fmt.Errorf("list %q: %w", location, err))
	}

	return refs, nil
}
