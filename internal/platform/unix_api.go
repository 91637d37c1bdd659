//go:build linux || darwin

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// UnixProbe implements DiskProbe with statfs(2)
type UnixProbe struct{}

func newDiskProbe() DiskProbe {
	return UnixProbe{}
}

// FreeBytes returns the bytes available to unprivileged users on the volume holding path
func (UnixProbe) FreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(probeDir(path), &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", probeDir(path), err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
