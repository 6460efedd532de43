//go:build !linux

package inventory

import (
	"os"
	"time"
)

// accessTime falls back to the modification time on platforms where the
// stat access time is not portably available.
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
