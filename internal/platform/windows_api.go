//go:build windows

package platform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// WindowsProbe implements DiskProbe with GetDiskFreeSpaceEx
type WindowsProbe struct{}

func newDiskProbe() DiskProbe {
	return WindowsProbe{}
}

// FreeBytes returns the bytes available to the calling user on the volume holding path
func (WindowsProbe) FreeBytes(path string) (int64, error) {
	dir, err := windows.UTF16PtrFromString(probeDir(path))
	if err != nil {
		return 0, err
	}

	var freeToCaller, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &freeToCaller, &total, &totalFree); err != nil {
		return 0, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", probeDir(path), err)
	}
	return int64(freeToCaller), nil
}
