// Package transaction implements Transaction, the record of a single
// offer/request pairing matched by a market, grounded on
// original_source/src/Core/transaction.cc and transaction.h.
package transaction

import (
	"sync"
	"sync/atomic"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/resource"
)

// Kind distinguishes an offer (supply) from a request (demand).
type Kind int

const (
	Offer Kind = iota
	Request
)

func (k Kind) String() string {
	if k == Offer {
		return "Offer"
	}
	return "Request"
}

var nextTransID int64

// allocTransID returns the next shared match id, starting at 1 (matching
// the original's next_trans_id_ initialized to 1).
func allocTransID() int64 {
	return atomic.AddInt64(&nextTransID, 1)
}

// Transaction describes a single-commodity offer or request: who created
// it, the resource and price involved, and, once matched via MatchWith, the
// counterparty on the other side of the trade.
type Transaction struct {
	mu sync.Mutex

	id   int64 // 0 until matched
	kind Kind

	supplierID   int64
	hasSupplier  bool
	requesterID  int64
	hasRequester bool

	commodity string
	res       resource.Resource
	price     float64
	minFrac   float64
}

// NewOffer creates an unmatched offer transaction created by supplierID.
func NewOffer(supplierID int64, commodity string, res resource.Resource, price, minFrac float64) *Transaction {
	return &Transaction{
		kind:        Offer,
		supplierID:  supplierID,
		hasSupplier: true,
		commodity:   commodity,
		res:         res,
		price:       price,
		minFrac:     minFrac,
	}
}

// NewRequest creates an unmatched request transaction created by
// requesterID.
func NewRequest(requesterID int64, commodity string, res resource.Resource, price, minFrac float64) *Transaction {
	return &Transaction{
		kind:         Request,
		requesterID:  requesterID,
		hasRequester: true,
		commodity:    commodity,
		res:          res,
		price:        price,
		minFrac:      minFrac,
	}
}

// MatchWith pairs t with other (which must be of the opposite Kind),
// filling in each side's missing supplier/requester id and assigning both a
// shared transaction id. Mirrors Transaction::MatchWith.
func (t *Transaction) MatchWith(other *Transaction) error {
	t.mu.Lock()
	other.mu.Lock()
	defer t.mu.Unlock()
	defer other.mu.Unlock()

	if other.kind == t.kind {
		return cerr.Value("transaction: cannot match incompatible transaction types (both %s)", t.kind)
	}

	if t.kind == Offer {
		t.requesterID, t.hasRequester = other.requesterID, true
		other.supplierID, other.hasSupplier = t.supplierID, true
	} else {
		t.supplierID, t.hasSupplier = other.supplierID, true
		other.requesterID, other.hasRequester = t.requesterID, true
	}

	id := allocTransID()
	t.id = id
	other.id = id
	return nil
}

// Clone returns an independent, unmatched copy of t: same kind, commodity,
// resource, price, and minfrac, and whichever of supplier/requester t
// already has set, but a fresh (zero) match id. Used when a market splits
// an offer's resource into a matched piece and a residual re-offer, each of
// which needs its own Transaction to carry forward.
func (t *Transaction) Clone() *Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Transaction{
		kind:         t.kind,
		supplierID:   t.supplierID,
		hasSupplier:  t.hasSupplier,
		requesterID:  t.requesterID,
		hasRequester: t.hasRequester,
		commodity:    t.commodity,
		res:          t.res,
		price:        t.price,
		minFrac:      t.minFrac,
	}
}

// ID returns the shared match id, or 0 if this transaction hasn't been
// matched yet.
func (t *Transaction) ID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// Kind returns whether this is an Offer or a Request.
func (t *Transaction) Kind() Kind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kind
}

// IsOffer reports whether this transaction is an Offer.
func (t *Transaction) IsOffer() bool { return t.Kind() == Offer }

// SupplierID returns the supplier's agent id and whether one has been set.
func (t *Transaction) SupplierID() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supplierID, t.hasSupplier
}

// RequesterID returns the requester's agent id and whether one has been
// set.
func (t *Transaction) RequesterID() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requesterID, t.hasRequester
}

// Commodity returns the traded commodity name.
func (t *Transaction) Commodity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commodity
}

// Resource returns the resource offered or requested.
func (t *Transaction) Resource() resource.Resource {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res
}

// SetResource replaces the transaction's resource (used by a market when it
// splits an offer/request to a matched sub-quantity).
func (t *Transaction) SetResource(r resource.Resource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.res = r
}

// Price returns the transaction's unit price.
func (t *Transaction) Price() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.price
}

// SetPrice updates the transaction's unit price.
func (t *Transaction) SetPrice(price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.price = price
}

// MinFrac returns the minimum acceptable fraction of the requested/offered
// quantity for this transaction to be considered fillable.
func (t *Transaction) MinFrac() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.minFrac
}
