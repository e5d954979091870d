package agent

import "github.com/cyclus-sim/cyclus/internal/message"

// marketReceiver is satisfied structurally by *internal/market.Market
// without this package needing to import it: a market only ever needs to
// sit in the tree as a message recipient, never as a Tickable.
type marketReceiver interface {
	ReceiveMessage(m *message.Envelope) error
}

// MarketNode adapts a commodity market to an agent-tree node so it can be
// registered into a Tree and resolved via message.Directory.Lookup
// alongside every other agent, mirroring MarketModel's place as just
// another Model subtype in the original.
type MarketNode struct {
	Base
	inner marketReceiver
}

// NewMarketNode wraps inner (normally an *internal/market.Market) as a tree
// node named name.
func NewMarketNode(name string, inner marketReceiver) *MarketNode {
	return &MarketNode{Base: NewBase(name, MarketKind), inner: inner}
}

// ReceiveMessage forwards to the wrapped market.
func (n *MarketNode) ReceiveMessage(m *message.Envelope) error {
	return n.inner.ReceiveMessage(m)
}
