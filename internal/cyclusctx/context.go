// Package cyclusctx implements Context, the per-simulation registry and
// facade every agent holds a reference to, grounded on
// original_source/src/Core/context.h and context.cc. The original's
// std::map<string, Model*> registries become plain Go maps guarded by one
// sync.Mutex; its templated GetModel<T> cast becomes a generic Lookup
// function parameterized over the expected concrete agent type, while
// CreateAgent returns an untyped value for the caller to assert.
package cyclusctx

import (
	"sync"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/google/uuid"
)

// Prototype is a factory for a named agent template: CreateModel in the
// original clones a registered Prototype; here that clone operation is
// just calling the stored constructor closure again.
type Prototype func() (any, error)

// Context is the simulation-scoped facade that owns the agent-id-by-name
// registry, the prototype registry, the recipe library, time bookkeeping,
// the shared material registry (for global decay), and the sink new
// events are recorded through.
type Context struct {
	mu       sync.Mutex
	models   map[string]int64 // name -> agent id, mirrors Context::models_
	protos   map[string]Prototype
	recipes  map[string]*composition.Composition
	time     int
	startYr  int
	startMo  int
	duration int
	simID    uuid.UUID

	materials *resource.MaterialRegistry
	sink      eventsink.Recorder
}

// New constructs a Context for a simulation run of the given duration
// (timesteps), starting at calendar (startYear, startMonth), recording
// events through sink.
func New(duration, startYear, startMonth int, sink eventsink.Recorder) *Context {
	return &Context{
		models:    make(map[string]int64),
		protos:    make(map[string]Prototype),
		recipes:   make(map[string]*composition.Composition),
		duration:  duration,
		startYr:   startYear,
		startMo:   startMonth,
		simID:     uuid.New(),
		materials: resource.NewMaterialRegistry(),
		sink:      sink,
	}
}

// SimHandle returns the run's unique identifier, recorded alongside every
// row this run writes so runs can be told apart in a shared database.
func (c *Context) SimHandle() uuid.UUID { return c.simID }

// Time returns the current simulation timestep.
func (c *Context) Time() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// SetTime advances the context's notion of the current timestep. Owned
// exclusively by the scheduler driving the run.
func (c *Context) SetTime(t int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = t
}

// Duration returns the run's configured length in timesteps.
func (c *Context) Duration() int { return c.duration }

// StartYear and StartMonth return the calendar date timestep 0 represents.
func (c *Context) StartYear() int  { return c.startYr }
func (c *Context) StartMonth() int { return c.startMo }

// Materials returns the shared registry every live Material is tracked in
// for global decay.
func (c *Context) Materials() *resource.MaterialRegistry { return c.materials }

// RegisterAgent records id under name, mirroring Context::RegisterModel.
// Fails if name is already registered.
func (c *Context) RegisterAgent(name string, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.models[name]; exists {
		return cerr.Key("cyclusctx: agent name %q is already registered", name)
	}
	c.models[name] = id
	return nil
}

// AgentID looks up the id an agent was registered under. Fails with a
// KeyErr if name is unknown, mirroring GetModel's KeyError.
func (c *Context) AgentID(name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.models[name]
	if !ok {
		return 0, cerr.Key("cyclusctx: no agent registered under name %q", name)
	}
	return id, nil
}

// RegisterProto records a prototype factory under name, mirroring
// Context::RegisterProto. Fails if name is already registered.
func (c *Context) RegisterProto(name string, p Prototype) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.protos[name]; exists {
		return cerr.Key("cyclusctx: prototype %q is already registered", name)
	}
	c.protos[name] = p
	return nil
}

// CreateAgent invokes the prototype factory registered under protoName,
// mirroring Context::CreateModel. Fails with a KeyErr if the name is
// unknown; the caller is responsible for type-asserting the returned value
// to the concrete archetype it expects (Go generics stand in for the
// original's templated dynamic_cast, see Lookup below for the registry
// read-side equivalent).
func (c *Context) CreateAgent(protoName string) (any, error) {
	c.mu.Lock()
	p, ok := c.protos[protoName]
	c.mu.Unlock()
	if !ok {
		return nil, cerr.Key("cyclusctx: no prototype registered under name %q", protoName)
	}
	return p()
}

// RegisterRecipe records a named composition, mirroring
// Context::RegisterRecipe.
func (c *Context) RegisterRecipe(name string, comp *composition.Composition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.recipes[name]; exists {
		return cerr.Key("cyclusctx: recipe %q is already registered", name)
	}
	c.recipes[name] = comp
	return nil
}

// Recipe looks up a named composition, mirroring Context::GetRecipe. Fails
// with a KeyErr if name is unknown.
func (c *Context) Recipe(name string) (*composition.Composition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.recipes[name]
	if !ok {
		return nil, cerr.Key("cyclusctx: no recipe registered under name %q", name)
	}
	return comp, nil
}

// NewEvent starts a new row builder for table, stamped with this run's
// SimHandle and the current timestep, mirroring Context::NewEvent
// delegating to the EventManager.
func (c *Context) NewEvent(table string) *eventsink.RowBuilder {
	return eventsink.NewRow(c.sink, table).
		Set("sim_id", c.simID.String()).
		Set("time", c.Time())
}
