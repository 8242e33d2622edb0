//go:build windows

package backup

import (
	"os"

	"github.com/hpungsan/tripkit/internal/errors"
)

// openNoFollow opens path. Windows has no O_NOFOLLOW; validatePath already
// rejected symlinks.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, err
	}
	return f, nil
}
