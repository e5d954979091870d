// Package market implements Market, the per-commodity request/offer
// matching engine, grounded on
// original_source/cycamore/Models/Market/GreedyMarket/GreedyMarket.cpp
// (the matching algorithm) and
// original_source/src/Models/Market/NullMarket/NullMarket.cpp (the
// quality/state-compatibility variant).
package market

import (
	"context"
	"sync"

	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/transaction"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer is notified once for every order that becomes firm, letting an
// outside caller (internal/inspect) record a transaction log without the
// market itself depending on any particular sink.
type Observer interface {
	OnFirmOrder(commodity string, trans *transaction.Transaction)
}

// Recorder is the event-sink facade Market writes "Transactions",
// "Resources", "ResourceTypes", and "Compositions" rows through when an
// order firms up. cyclusctx.Context satisfies this directly.
type Recorder interface {
	NewEvent(table string) *eventsink.RowBuilder
}

// Epsilon is the quantity comparison tolerance used throughout matching.
const Epsilon = compmath.Epsilon

// Policy decides whether an offer's resource is an acceptable fill for a
// request's resource, beyond the two simply sharing a commodity name.
type Policy interface {
	Compatible(offer, request resource.Resource) bool
}

// GreedyPolicy matches any offer against any request for the commodity,
// regardless of resource state -- the default, grounded on GreedyMarket.cpp
// which performs no compatibility check at all.
type GreedyPolicy struct{}

// Compatible implements Policy.
func (GreedyPolicy) Compatible(resource.Resource, resource.Resource) bool { return true }

// ExactStatePolicy only matches an offer to a request when both share the
// same resource state id (composition, for Material; (units, quality), for
// Product) -- grounded on NullMarket.cpp's checkQuality gate.
type ExactStatePolicy struct{}

// Compatible implements Policy.
func (ExactStatePolicy) Compatible(offer, request resource.Resource) bool {
	return offer.StateID() == request.StateID()
}

// Metrics holds the Prometheus collectors a Market reports its resolve-pass
// activity through.
type Metrics struct {
	Matches  prometheus.Counter
	Splits   prometheus.Counter
	Rejects  prometheus.Counter
	Resolves prometheus.Counter
}

// NewMetrics registers a fresh set of per-commodity counters against reg.
func NewMetrics(reg prometheus.Registerer, commodity string) (*Metrics, error) {
	m := &Metrics{
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cyclus_market_matches_total",
			Help:        "Number of firm offer/request matches made by this market.",
			ConstLabels: prometheus.Labels{"commodity": commodity},
		}),
		Splits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cyclus_market_splits_total",
			Help:        "Number of offers split to partially fill a request.",
			ConstLabels: prometheus.Labels{"commodity": commodity},
		}),
		Rejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cyclus_market_rejects_total",
			Help:        "Number of requests that could not be fully filled.",
			ConstLabels: prometheus.Labels{"commodity": commodity},
		}),
		Resolves: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cyclus_market_resolves_total",
			Help:        "Number of resolve passes run by this market.",
			ConstLabels: prometheus.Labels{"commodity": commodity},
		}),
	}
	for _, c := range []prometheus.Collector{m.Matches, m.Splits, m.Rejects, m.Resolves} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Market accumulates offer and request messages for one commodity over a
// resolve interval and, on Resolve, greedily pairs the largest outstanding
// request against the largest compatible outstanding offer (splitting the
// offer when it's larger than the request) until every request has either
// been filled or rejected, then dispatches the resulting firm orders back
// down their senders' paths.
type Market struct {
	mu        sync.Mutex
	commodity string
	policy    Policy
	metrics   *Metrics

	// offers and requests are kept sorted ascending by resource quantity;
	// entries of equal quantity are appended after existing equal entries,
	// so popping from the back yields the largest, and among ties, the
	// most recently received -- matching std::multimap's iteration order
	// in the original.
	offers   []*message.Envelope
	requests []*message.Envelope

	matchedOffers []*message.Envelope // tentatively matched this request, pending firm commit or rollback
	orders        []*message.Envelope // accumulated firm+tentative orders awaiting dispatch
	firmOrders    int

	observer Observer
	recorder Recorder
}

// SetObserver attaches an observer notified once per order this market
// firms up. Replaces any previously attached Observer.
func (m *Market) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// SetRecorder attaches the event sink processRequest writes
// "Transactions"/"Resources"/"ResourceTypes"/"Compositions" rows through
// for every order that firms up. Replaces any previously attached Recorder.
func (m *Market) SetRecorder(r Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

// New creates an empty Market for commodity using policy. If policy is nil,
// GreedyPolicy is used. metrics may be nil to disable instrumentation.
func New(commodity string, policy Policy, metrics *Metrics) *Market {
	if policy == nil {
		policy = GreedyPolicy{}
	}
	return &Market{commodity: commodity, policy: policy, metrics: metrics}
}

// Commodity returns the commodity this market clears.
func (m *Market) Commodity() string { return m.commodity }

func insertSorted(list []*message.Envelope, env *message.Envelope) []*message.Envelope {
	qty := mustResource(env).Quantity()
	i := len(list)
	for i > 0 && mustResource(list[i-1]).Quantity() > qty {
		i--
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = env
	return list
}

func mustResource(env *message.Envelope) resource.Resource {
	t, err := env.Transaction()
	if err != nil {
		panic(err) // programmer error: every queued envelope must carry a transaction
	}
	return t.Resource()
}

// popLargestCompatible removes and returns the largest-quantity entry in
// *list that the market's policy considers compatible with against,
// scanning from the largest quantity downward. Entries it skips over are
// left untouched in the list (unlike the original, which erases the
// popped candidate unconditionally and discards it silently if
// incompatible -- a resource-loss bug this implementation does not
// reproduce).
func popLargestCompatible(list *[]*message.Envelope, policy Policy, against resource.Resource) (*message.Envelope, bool) {
	for i := len(*list) - 1; i >= 0; i-- {
		cand := (*list)[i]
		if policy.Compatible(mustResource(cand), against) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return cand, true
		}
	}
	return nil, false
}

// ReceiveMessage accepts an offer or request envelope into the market's
// pending queues, classified by its transaction's Kind.
func (m *Market) ReceiveMessage(env *message.Envelope) error {
	t, err := env.Transaction()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.IsOffer() {
		m.offers = insertSorted(m.offers, env)
	} else {
		m.requests = insertSorted(m.requests, env)
	}
	return nil
}

// Resolve runs one clearing pass: every pending request is matched (fully
// or partially, against one or more offers) or rejected, and the resulting
// firm orders are sent DOWN back along their path toward their suppliers
// via dir.
func (m *Market) Resolve(dir message.Directory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.firmOrders = 0
	for len(m.requests) > 0 {
		request := m.requests[len(m.requests)-1]
		m.requests = m.requests[:len(m.requests)-1]

		filled, err := m.matchRequest(request)
		if err != nil {
			return err
		}
		if filled {
			m.processRequest()
		} else if m.metrics != nil {
			m.metrics.Rejects.Inc()
		}
	}

	for _, order := range m.orders {
		order.SetDir(message.Down)
		if err := order.SendOn(dir); err != nil {
			return err
		}
	}
	m.orders = nil
	if m.metrics != nil {
		m.metrics.Resolves.Inc()
	}
	return nil
}

// matchRequest attempts to fully satisfy request against the market's
// pending offers, tentatively queuing matched/split orders as it goes.
// Returns false (and rolls back its tentative orders) if the request
// cannot be fully filled.
func (m *Market) matchRequest(request *message.Envelope) (bool, error) {
	reqTrans, err := request.Transaction()
	if err != nil {
		return false, err
	}
	requestAmt := reqTrans.Resource().Quantity()

	for requestAmt > Epsilon && len(m.offers) > 0 {
		offerEnv, ok := popLargestCompatible(&m.offers, m.policy, reqTrans.Resource())
		if !ok {
			break
		}
		offerTrans, err := offerEnv.Transaction()
		if err != nil {
			return false, err
		}
		offerAmt := offerTrans.Resource().Quantity()

		if requestAmt-offerAmt > Epsilon {
			// offer fully consumed by part of the request
			if err := offerTrans.MatchWith(reqTrans); err != nil {
				return false, err
			}
			m.matchedOffers = append(m.matchedOffers, offerEnv)
			m.orders = append(m.orders, offerEnv)
			requestAmt -= offerAmt
			if m.metrics != nil {
				m.metrics.Matches.Inc()
			}
			continue
		}

		// offer is large enough to fill the remaining request; split it.
		splitEnv := offerEnv.Clone()
		splitTrans, err := splitEnv.Transaction()
		if err != nil {
			return false, err
		}
		splitRes, err := resource.Split(offerTrans.Resource(), requestAmt)
		if err != nil {
			return false, err
		}
		splitTrans.SetResource(splitRes)
		if err := splitTrans.MatchWith(reqTrans); err != nil {
			return false, err
		}

		m.matchedOffers = append(m.matchedOffers, offerEnv)
		m.orders = append(m.orders, splitEnv)
		if m.metrics != nil {
			m.metrics.Splits.Inc()
		}

		residualAmt := offerAmt - requestAmt
		if residualAmt > Epsilon {
			residualEnv := offerEnv.Clone()
			// matchRequest runs under m.mu (held by Resolve), so reinject
			// directly rather than through the locking ReceiveMessage.
			m.offers = insertSorted(m.offers, residualEnv)
		}
		requestAmt = 0
	}

	if requestAmt > Epsilon {
		m.rejectRequest()
		return false, nil
	}
	return true, nil
}

// rejectRequest undoes every tentative order queued for the
// just-abandoned request and restores its matched offers to the offer
// pool, per GreedyMarket::reject_request.
func (m *Market) rejectRequest() {
	if len(m.orders) > m.firmOrders {
		m.orders = m.orders[:m.firmOrders]
	}
	for _, offerEnv := range m.matchedOffers {
		m.offers = insertSorted(m.offers, offerEnv)
	}
	m.matchedOffers = nil
}

// processRequest commits the tentative orders accumulated for a
// successfully filled request: they become firm (won't be rolled back by a
// later request's rejection), per GreedyMarket::process_request.
func (m *Market) processRequest() {
	for _, env := range m.orders[m.firmOrders:] {
		trans, err := env.Transaction()
		if err != nil {
			continue
		}
		if m.observer != nil {
			m.observer.OnFirmOrder(m.commodity, trans)
		}
		if m.recorder != nil {
			m.recordFirmOrder(trans)
		}
	}
	m.firmOrders = len(m.orders)
	m.matchedOffers = nil
}

// recordFirmOrder writes the canonical "Transactions" and "Resources" rows
// and, for a Material, the "ResourceTypes" and per-nuclide "Compositions"
// rows for a just-firmed order, mirroring the original recording one row
// per concern from Transaction::ApproveTransfer: one row for the trade
// itself, one per transacted resource, and one per nuclide in that
// resource's composition. A Recorder error stops the remaining rows for
// that order and is not returned.
func (m *Market) recordFirmOrder(trans *transaction.Transaction) {
	supplierID, _ := trans.SupplierID()
	requesterID, _ := trans.RequesterID()
	res := trans.Resource()

	if err := m.recorder.NewEvent("Transactions").
		Set("transaction_id", trans.ID()).
		Set("commodity", m.commodity).
		Set("supplier_id", supplierID).
		Set("requester_id", requesterID).
		Set("resource_id", res.ResourceID()).
		Set("quantity", res.Quantity()).
		Set("price", trans.Price()).
		Record(context.Background()); err != nil {
		return
	}

	if err := m.recorder.NewEvent("Resources").
		Set("resource_id", res.ResourceID()).
		Set("state_id", res.StateID()).
		Set("kind", res.Kind()).
		Set("quantity", res.Quantity()).
		Record(context.Background()); err != nil {
		return
	}

	mat, ok := res.(*resource.Material)
	if !ok {
		return
	}
	comp := mat.Composition()
	if err := m.recorder.NewEvent("ResourceTypes").
		Set("state_id", res.StateID()).
		Set("qual_id", comp.ID()).
		Record(context.Background()); err != nil {
		return
	}

	massVec, err := comp.Mass()
	if err != nil {
		return
	}
	for nucID, frac := range massVec {
		_ = m.recorder.NewEvent("Compositions").
			Set("qual_id", comp.ID()).
			Set("nuc_id", int64(nucID)).
			Set("mass_frac", frac).
			Record(context.Background())
	}
}

// PendingOfferCount and PendingRequestCount expose queue depth for tests
// and inspection; neither mutates market state.
func (m *Market) PendingOfferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.offers)
}

func (m *Market) PendingRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
