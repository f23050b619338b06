//go:build unix

package fsutil

import (
	"os"
	"syscall"
)

// ownership extracts the owning uid/gid from a Lstat result, the way
// rclone's local backend reads them off *syscall.Stat_t for its metadata
// fields.
func ownership(info os.FileInfo) (uid, gid int) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return int(stat.Uid), int(stat.Gid)
}
