//go:build !linux && !darwin && !windows

package platform

type unsupportedProbe struct{}

func newDiskProbe() DiskProbe {
	return unsupportedProbe{}
}

func (unsupportedProbe) FreeBytes(string) (int64, error) {
	return 0, ErrUnsupported
}
