// Package di provides dependency injection wiring and initialization for
// a Cyclus run, grounded on the teacher's internal/di/wire.go staged-
// initialization-with-cleanup-on-error pattern.
package di

import (
	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/buildplanner"
	"github.com/cyclus-sim/cyclus/internal/cyclusctx"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/inspect"
	"github.com/cyclus-sim/cyclus/internal/market"
	"github.com/cyclus-sim/cyclus/internal/scheduler"
)

// Container holds every wired dependency a running simulation needs,
// mirroring the teacher's Container struct (there: database handles and
// repositories; here: the simulation's own core objects).
type Container struct {
	Sink    eventsink.Recorder
	Ctx     *cyclusctx.Context
	Tree    *agent.Tree
	Markets map[string]*market.Market
	Plans   *buildplanner.Registry
	Metrics *scheduler.Metrics
	Timer   *scheduler.Timer

	// Hub and Transactions feed internal/inspect; both are always
	// constructed (attaching an observer nobody reads costs nothing) but
	// an inspect.Server is only stood up by the caller when asked to.
	Hub          *inspect.Hub
	Transactions *inspect.Log
}

// Close releases every closeable resource the container holds, mirroring
// the teacher's Wire-error-path cleanup but exposed for the success path
// too (a finished simulation should close its own event sink).
func (c *Container) Close() error {
	if c.Sink != nil {
		return c.Sink.Close()
	}
	return nil
}
