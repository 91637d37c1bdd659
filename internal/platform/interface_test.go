package platform

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeDir(t *testing.T) {
	assert.Equal(t, ".", probeDir(""))
	assert.Equal(t, ".", probeDir("scrollguard.db"))
	assert.Equal(t, filepath.Join("data", "store"), probeDir(filepath.Join("data", "store", "scrollguard.db")))
}

func TestDiskProbe_FreeBytes(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skip("no free space probe on " + runtime.GOOS)
	}

	free, err := NewDiskProbe().FreeBytes(filepath.Join(t.TempDir(), "scrollguard.db"))
	require.NoError(t, err)
	assert.Positive(t, free)
}

func TestDiskProbe_MissingDirectory(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("statfs only")
	}

	_, err := NewDiskProbe().FreeBytes(filepath.Join(t.TempDir(), "missing", "scrollguard.db"))
	assert.Error(t, err)
}
