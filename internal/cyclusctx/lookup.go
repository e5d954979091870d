package cyclusctx

import (
	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/cerr"
)

// Lookup resolves name through the Context's agent registry and type-
// asserts the live agent registered in tree under that id to T, mirroring
// Context::GetModel<T>'s name lookup plus dynamic_cast. Fails with a
// CastErr if the registered agent is not of the requested type.
func Lookup[T any](c *Context, tree *agent.Tree, name string) (T, error) {
	var zero T
	id, err := c.AgentID(name)
	if err != nil {
		return zero, err
	}
	raw, err := tree.AgentOf(id)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, cerr.Cast("cyclusctx: agent %q is not of the requested type", name)
	}
	return typed, nil
}
