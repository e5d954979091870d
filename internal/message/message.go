// Package message implements Envelope, the routed message cyclus agents
// exchange to negotiate and confirm transactions, grounded on
// original_source/src/Core/message.cc and message.h.
package message

import (
	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/transaction"
)

// Direction is the leg of the message's round trip: Up toward the root of
// the agent tree (outgoing), or Down retracing the same path (incoming).
type Direction int

const (
	Up Direction = iota
	Down
	None
)

// Communicator is implemented by anything that can sit in a message's path
// and receive it. internal/agent's agents implement this once built.
type Communicator interface {
	AgentID() int64
	// Parent returns the id of this communicator's parent and true, or
	// (0, false) if this communicator is a root with no parent.
	Parent() (int64, bool)
	ReceiveMessage(m *Envelope) error
}

// Directory resolves an agent id to the live Communicator it names, so an
// Envelope only needs to carry ids (not live pointers) along its path.
type Directory interface {
	Lookup(id int64) (Communicator, error)
}

// Envelope is a message traveling up the agent tree toward a receiver and
// then back down the same path, carrying an optional Transaction payload.
// It is not safe for concurrent use by multiple goroutines; a given
// Envelope is owned by one in-flight send at a time.
type Envelope struct {
	dir Direction

	senderID   int64
	receiverID int64
	trans      *transaction.Transaction
	notes      string

	pathStack []int64 // ids of communicators visited on the outgoing leg
	currOwner int64
	dead      bool
}

// NewUp creates an outgoing (Up) message from sender to receiver, with path
// tracking seeded at the sender.
func NewUp(senderID, receiverID int64) *Envelope {
	return &Envelope{
		dir:        Up,
		senderID:   senderID,
		receiverID: receiverID,
		currOwner:  senderID,
		pathStack:  []int64{senderID},
	}
}

// WithTransaction attaches a transaction payload and returns the envelope
// for chaining.
func (m *Envelope) WithTransaction(t *transaction.Transaction) *Envelope {
	m.trans = t
	return m
}

// Clone returns a copy of the envelope with its own independent
// Transaction (via transaction.Transaction.Clone), the same path traversed
// so far, and the same sender/receiver/notes/direction. Used by a market
// splitting an offer into a matched piece and a residual re-offer.
func (m *Envelope) Clone() *Envelope {
	pathCopy := make([]int64, len(m.pathStack))
	copy(pathCopy, m.pathStack)
	clone := &Envelope{
		dir:        m.dir,
		senderID:   m.senderID,
		receiverID: m.receiverID,
		notes:      m.notes,
		pathStack:  pathCopy,
		currOwner:  m.currOwner,
		dead:       m.dead,
	}
	if m.trans != nil {
		clone.trans = m.trans.Clone()
	}
	return clone
}

// Transaction returns the message's transaction payload. Fails if none was
// attached.
func (m *Envelope) Transaction() (*transaction.Transaction, error) {
	if m.trans == nil {
		return nil, cerr.State("message: has no transaction payload")
	}
	return m.trans, nil
}

// Notes returns any extra free-form text attached to the message.
func (m *Envelope) Notes() string { return m.notes }

// SetNotes attaches free-form text to the message.
func (m *Envelope) SetNotes(text string) { m.notes = text }

// Sender returns the message's original creator's id.
func (m *Envelope) Sender() int64 { return m.senderID }

// Receiver returns the message's intended final destination id.
func (m *Envelope) Receiver() int64 { return m.receiverID }

// Dir returns the message's current direction of travel.
func (m *Envelope) Dir() Direction { return m.dir }

// SetDir flips the message's direction, e.g. once the receiver has finished
// processing an Up message and wants it to retrace its path back down.
func (m *Envelope) SetDir(d Direction) { m.dir = d }

// IsDead reports whether Kill has been called on this message.
func (m *Envelope) IsDead() bool { return m.dead }

// Kill marks the message dead: further SendOn calls become no-ops. Used to
// prevent a message from being routed back through an agent that has since
// been removed from the tree.
func (m *Envelope) Kill() { m.dead = true }

// SetNextDest appends next to the outgoing path. Ignored once the message
// has turned to Down, since a down-bound message must retrace its recorded
// path exactly.
func (m *Envelope) SetNextDest(next int64) {
	if m.dir == Down {
		return
	}
	m.pathStack = append(m.pathStack, next)
}

// autoSetNextDest pushes the current owner's parent as the next stop, or
// the message's receiver if the current owner has no parent (i.e. is the
// tree root). It only acts if SetNextDest hasn't already been called
// manually since the last send (i.e. the path's tail is still the current
// owner).
func (m *Envelope) autoSetNextDest(dir Directory) error {
	n := len(m.pathStack)
	if n == 0 || m.pathStack[n-1] != m.currOwner {
		return nil
	}
	if n >= 2 && m.pathStack[n-2] == m.currOwner {
		// SetNextDest named the current owner itself; leave that stop in
		// place so SendOn rejects it as a self-delivery.
		return nil
	}
	owner, err := dir.Lookup(m.currOwner)
	if err != nil {
		return err
	}
	parentID, ok := owner.Parent()
	if !ok {
		m.SetNextDest(m.receiverID)
		return nil
	}
	m.SetNextDest(parentID)
	return nil
}

// SendOn advances the message one hop along its path: for an Up message, it
// auto-extends the path toward the receiver (via each owner's parent,
// falling back to the receiver once the tree root is reached) before
// delivering; for a Down message, it pops the last hop and delivers to
// whichever communicator is now at the top of the (now-shorter) path. A
// dead message is a silent no-op. Self-delivery (the computed next stop
// equal to the message's current owner) is a routing error, matching the
// original's "message receiver and sender are the same" guard.
func (m *Envelope) SendOn(dir Directory) error {
	if m.dead {
		return nil
	}

	switch m.dir {
	case Down:
		if len(m.pathStack) == 0 {
			return cerr.State("message: cannot send, path already exhausted")
		}
		m.pathStack = m.pathStack[:len(m.pathStack)-1]
	case Up:
		if err := m.autoSetNextDest(dir); err != nil {
			return err
		}
	default:
		return nil
	}

	if len(m.pathStack) == 0 {
		return cerr.State("message: no receiver designated, call SetNextDest first")
	}

	next := m.pathStack[len(m.pathStack)-1]
	if next == m.currOwner {
		return cerr.State("message: receiver and sender are the same")
	}
	m.currOwner = next

	comm, err := dir.Lookup(next)
	if err != nil {
		return err
	}
	return comm.ReceiveMessage(m)
}
