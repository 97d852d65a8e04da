//go:build windows

package publish

import (
	"errors"
	"io/fs"
)

var errOwnershipUnsupported = errors.New("owner and group are not supported on windows")

func resolveOwnership(owner, group string) (int, int, error) {
	if owner != "" || group != "" {
		return 0, 0, errOwnershipUnsupported
	}
	return -1, -1, nil
}

func currentOwnership(fs.FileInfo) (int, int, bool) {
	return 0, 0, false
}

func chown(string, int, int) error {
	return errOwnershipUnsupported
}
