package control

import (
	"context"

	"github.com/haukened/callfwd/internal/callfwd/domain"
	"github.com/haukened/callfwd/internal/callfwd/repos/registry"
)

// Registry is the part of the domain registry the dispatcher needs.
type Registry interface {
	Table(id domain.DomainID) (registry.Table, error)
	Tables() []registry.Table
	RetiredPending() int
}

// Dispatcher executes one decoded control command. The transport maps a nil
// error to a success status and anything else to a failure status.
type Dispatcher interface {
	Execute(ctx context.Context, cmd Command) error
}

var (
	_ Registry   = (*registry.Registry)(nil)
	_ Dispatcher = (*Service)(nil)
)
