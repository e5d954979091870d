// Package scheduler implements Timer, the monthly tick/resolve loop that
// drives a simulation forward (there is no tock phase), grounded on
// original_source/src/Core/timer.cc and timer.h.
package scheduler

import (
	"context"
	"fmt"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/cyclusctx"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/rs/zerolog"
)

// TickListener receives per-timestep tick notifications, mirroring
// TimeAgent::HandleTick. Every agent.Tickable qualifies.
type TickListener = agent.Tickable

// ResolveListener receives per-timestep market clearing notifications,
// mirroring MarketModel::Resolve. Every agent.Resolvable qualifies.
type ResolveListener = agent.Resolvable

// tickEntry and resolveEntry pair a registered TickListener/ResolveListener
// with the name it's reported under in logs, mirroring Timer::ReportListeners.
type tickEntry struct {
	name string
	l    TickListener
}

type resolveEntry struct {
	name string
	l    ResolveListener
}

// Timer drives a simulation's monthly loop: each timestep it optionally
// triggers global decay, sends Tick to every registered listener in
// registration order, then Resolve to every registered market in
// registration order, mirroring RunSim's single-day-of-month branch (this
// implementation has no daily sub-loop, since spec-level agents only ever
// act once per month; Timer::SendDailyTasks/SendTock have no caller here).
type Timer struct {
	ctx           *cyclusctx.Context
	dir           message.Directory
	decayInterval int

	ticks    []tickEntry
	resolves []resolveEntry

	log       zerolog.Logger
	metrics   *Metrics
	publisher Publisher
}

// Publisher receives a best-effort notification after each phase of a
// timestep completes, letting an outside observer (internal/inspect) watch
// a run without being on its critical path. A nil Publisher is a no-op,
// and Publish itself must never block or fail the simulation.
type Publisher interface {
	Publish(phase string, t int)
}

// New constructs a Timer driving ctx's simulation, routing agent messages
// through dir, triggering global material decay every decayInterval
// timesteps (decayInterval <= 0 disables decay, mirroring the original's
// "decay_interval_ <= 0 if decay is off").
func New(ctx *cyclusctx.Context, dir message.Directory, decayInterval int, log zerolog.Logger, metrics *Metrics) *Timer {
	return &Timer{
		ctx:           ctx,
		dir:           dir,
		decayInterval: decayInterval,
		log:           log.With().Str("component", "scheduler").Logger(),
		metrics:       metrics,
	}
}

// SetPublisher attaches an observer notified after each phase of every
// timestep. Replaces any previously attached Publisher.
func (t *Timer) SetPublisher(p Publisher) {
	t.publisher = p
}

// RegisterTickListener adds l to the set notified every timestep, mirroring
// Timer::RegisterTickListener.
func (t *Timer) RegisterTickListener(name string, l TickListener) {
	t.log.Debug().Str("listener", name).Msg("registered tick listener")
	t.ticks = append(t.ticks, tickEntry{name: name, l: l})
}

// RegisterResolveListener adds l to the set resolved every timestep,
// mirroring Timer::RegisterResolveListener.
func (t *Timer) RegisterResolveListener(name string, l ResolveListener) {
	t.log.Debug().Str("listener", name).Msg("registered resolve listener")
	t.resolves = append(t.resolves, resolveEntry{name: name, l: l})
}

// RunSim advances the simulation from its current timestep through
// ctx.Duration(), mirroring RunSim's `while (date_ < endDate())` loop
// collapsed to one iteration per month (this implementation has no
// daily/date granularity, only the monthly GENIUS time the original also
// keys its decay/tick/resolve triggers off of). A failure at any step
// (decay, a single listener's Tick, or a single market's Resolve) stops
// the run immediately and is returned to the caller, rather than being
// logged and swallowed the way CLOG would in the original -- a simulation
// with an agent in an inconsistent state should not silently keep running.
// Each completed timestep advances the context's time by one, so a
// successful run leaves it at ctx.Duration().
func (t *Timer) RunSim() error {
	for step := t.ctx.Time(); step < t.ctx.Duration(); step++ {
		t.ctx.SetTime(step)
		if err := t.runTimestep(step); err != nil {
			return fmt.Errorf("scheduler: timestep %d: %w", step, err)
		}
		t.ctx.SetTime(step + 1)
	}
	return nil
}

func (t *Timer) runTimestep(step int) error {
	if t.decayInterval > 0 && step > 0 && step%t.decayInterval == 0 {
		if err := t.runPhase("decay", func() error { return t.ctx.Materials().DecayAll(step) }); err != nil {
			return err
		}
		t.publish("decay", step)
	}

	if err := t.runPhase("tick", func() error { return t.sendTick(step) }); err != nil {
		return err
	}
	t.publish("tick", step)

	if err := t.runPhase("resolve", t.sendResolve); err != nil {
		return err
	}
	t.publish("resolve", step)

	if err := t.recordTimeInfo(step); err != nil {
		return err
	}
	return nil
}

// recordTimeInfo writes one "SimulationTimeInfo" row per completed
// timestep, mirroring the original's SimInfo table (one row describing
// the run's calendar/duration, refreshed as the run progresses rather
// than written once up front, since duration is fixed for the whole run
// but this keeps the table's latest row always reflecting "time").
func (t *Timer) recordTimeInfo(step int) error {
	row := t.ctx.NewEvent("SimulationTimeInfo").
		Set("duration", t.ctx.Duration()).
		Set("start_year", t.ctx.StartYear()).
		Set("start_month", t.ctx.StartMonth())
	if err := row.Record(context.Background()); err != nil {
		return fmt.Errorf("scheduler: record SimulationTimeInfo row for timestep %d: %w", step, err)
	}
	return nil
}

func (t *Timer) publish(phase string, step int) {
	if t.publisher != nil {
		t.publisher.Publish(phase, step)
	}
}

func (t *Timer) sendTick(step int) error {
	for _, e := range t.ticks {
		t.log.Debug().Int("time", step).Str("listener", e.name).Msg("sending tick")
		if err := e.l.Tick(step, t.dir); err != nil {
			return fmt.Errorf("tick listener %s: %w", e.name, err)
		}
	}
	return nil
}

func (t *Timer) sendResolve() error {
	for _, e := range t.resolves {
		t.log.Debug().Str("listener", e.name).Msg("sending resolve")
		if err := e.l.Resolve(t.dir); err != nil {
			return fmt.Errorf("resolve listener %s: %w", e.name, err)
		}
	}
	return nil
}

// runPhase times phase and records it via metrics (if non-nil) regardless
// of whether fn succeeds, so a failing phase still shows up in the
// duration histogram.
func (t *Timer) runPhase(phase string, fn func() error) error {
	stop := t.metrics.startTimer(phase)
	err := fn()
	stop()
	if t.metrics != nil {
		if err != nil {
			t.metrics.Failures.WithLabelValues(phase).Inc()
		} else {
			t.metrics.Completions.WithLabelValues(phase).Inc()
		}
	}
	return err
}
