package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/taix/constants"
)

// discover walks root for invoice documents. An unreadable root is fatal;
// unreadable entries below it are reported and skipped.
func discover(ctx context.Context, root string) ([]string, []Failure, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, fmt.Errorf("source directory is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("source directory: %s is not a directory", root)
	}

	var paths []string
	var failures []Failure
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			failures = append(failures, Failure{Path: path, Stage: StageSource, Err: walkErr})
			return nil
		}
		if path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowedExt(filepath.Ext(path)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, failures, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(paths)
	return paths, failures, nil
}

func allowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// relName is the record file_name for path: its slash-separated path below
// root. Top-level documents keep their base name, nested ones stay distinct.
func relName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
