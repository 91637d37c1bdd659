package repository

import (
	"sync/atomic"

	repoerrors "scrollguard/internal/infrastructure/errors"
)

// Gate is the readiness flag. Until it is opened every store operation fails
// with StorageUnavailable without touching the medium.
type Gate struct {
	open atomic.Bool
}

// NewGate returns a closed gate
func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Open()  { g.open.Store(true) }
func (g *Gate) Close() { g.open.Store(false) }

// IsOpen reports whether initialization has completed
func (g *Gate) IsOpen() bool {
	return g == nil || g.open.Load()
}

func (g *Gate) check(op string) error {
	if g.IsOpen() {
		return nil
	}
	return repoerrors.HandleUnavailable(op, "store is not initialized")
}
