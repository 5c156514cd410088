//go:build unix

package resource

import "syscall"

// readDiskUsage returns the fill fraction of the filesystem backing
// the working directory, or 0 when it cannot be measured.
func readDiskUsage() float64 {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(".", &stat); err != nil {
		return 0
	}
	total := float64(stat.Blocks) * float64(stat.Bsize)
	if total == 0 {
		return 0
	}
	free := float64(stat.Bavail) * float64(stat.Bsize)
	return (total - free) / total
}
