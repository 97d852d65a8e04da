//go:build unix

package publish

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// resolveOwnership turns owner/group names or numeric ids into a uid/gid
// pair. Empty strings resolve to -1, meaning "leave unchanged".
func resolveOwnership(owner, group string) (int, int, error) {
	uid := -1
	gid := -1

	if owner != "" {
		if u, err := user.Lookup(owner); err == nil {
			uid, err = strconv.Atoi(u.Uid)
			if err != nil {
				return 0, 0, fmt.Errorf("user %q has non-numeric uid %q", owner, u.Uid)
			}
		} else if n, convErr := strconv.Atoi(owner); convErr == nil {
			uid = n
		} else {
			return 0, 0, fmt.Errorf("unknown owner %q", owner)
		}
	}

	if group != "" {
		if g, err := user.LookupGroup(group); err == nil {
			gid, err = strconv.Atoi(g.Gid)
			if err != nil {
				return 0, 0, fmt.Errorf("group %q has non-numeric gid %q", group, g.Gid)
			}
		} else if n, convErr := strconv.Atoi(group); convErr == nil {
			gid = n
		} else {
			return 0, 0, fmt.Errorf("unknown group %q", group)
		}
	}

	return uid, gid, nil
}

// currentOwnership reports the uid/gid owning the inspected file.
func currentOwnership(info fs.FileInfo) (int, int, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(st.Uid), int(st.Gid), true
}

func chown(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}
