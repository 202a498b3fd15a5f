// Package engine runs an Invocation and reports the builder's exit code.
package engine

import (
	"context"
	"fmt"

	"github.com/asadpanda/insteon-mqtt/pkg/config"
	"github.com/asadpanda/insteon-mqtt/pkg/invocation"
)

// Engine launches the builder once and waits for it.
//
// Run returns the builder's exit code. The error is non-nil only when the
// builder could not be started or awaited; a failing build is just a code.
type Engine interface {
	Run(ctx context.Context, inv *invocation.Invocation) (int, error)
	Close() error
}

func New(name string, inv *invocation.Invocation) (Engine, error) {
	switch name {
	case config.EngineCLI:
		return NewCLI("docker"), nil
	case config.EngineAPI:
		return NewAPI("unix://" + inv.Socket)
	default:
		return nil, fmt.Errorf("unknown engine: %s", name)
	}
}
