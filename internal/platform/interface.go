package platform

import (
	"errors"
	"path/filepath"
)

// ErrUnsupported is returned where the platform cannot report free space
var ErrUnsupported = errors.New("platform: free space probe not supported")

// DiskProbe reports the space left on the volume backing a path
type DiskProbe interface {
	FreeBytes(path string) (int64, error)
}

// NewDiskProbe creates the probe for the current platform
func NewDiskProbe() DiskProbe {
	return newDiskProbe()
}

// probeDir returns the directory to stat for a database file path
func probeDir(path string) string {
	if path == "" {
		return "."
	}
	return filepath.Dir(path)
}
