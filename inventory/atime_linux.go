//go:build linux

package inventory

import (
	"os"
	"syscall"
	"time"
)

// accessTime returns the file's last access time from the underlying stat
// structure.
func accessTime(info os.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
	}
	return info.ModTime()
}
