package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/tripkit/internal/errors"
)

// pathMode indicates whether the path check is for reading or writing.
type pathMode int

const (
	forRead  pathMode = iota // import
	forWrite                 // export
)

// validatePath checks that path is a .jsonl file directly inside dir, has
// no ".." components and is not a symlink. Files in subdirectories are
// rejected so no intermediate directory can be swapped for a symlink
// between the check and the open.
func validatePath(path, dir string, mode pathMode) (string, error) {
	if path == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return "", errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	parent := filepath.Dir(absPath)
	if parent != filepath.Clean(absDir) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("file must be directly in %s (no subdirectories)", absDir))
	}
	if info, err := os.Lstat(parent); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("backup directory must not be a symlink")
	}

	info, err := os.Lstat(absPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return "", errors.NewInvalidRequest("path must not be a symlink")
	case os.IsNotExist(err) && mode == forRead:
		return "", errors.NewNotFound("file", path)
	}
	return absPath, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
