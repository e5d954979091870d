package inspect

import (
	"sync"

	"github.com/cyclus-sim/cyclus/internal/transaction"
)

// TransactionRecord is the read-only projection of a firmed order the
// inspector serves over /transactions, grounded on the supplier/requester
// commodity/quantity/price fields transaction.cc's AddTransToTable writes
// to the original's output database.
type TransactionRecord struct {
	ID          int64
	Commodity   string
	SupplierID  int64
	RequesterID int64
	Quantity    float64
	Price       float64
}

// defaultLogCapacity bounds how many transactions Log retains in memory;
// older entries are dropped once the log is full, since the inspector is a
// live tail, not the system of record (internal/eventsink's Transactions
// table is).
const defaultLogCapacity = 4096

// Log is a bounded, in-memory tail of recently firmed orders, implementing
// market.Observer so it can be attached to every commodity's Market
// directly.
type Log struct {
	mu      sync.Mutex
	nextID  int64
	records []TransactionRecord
	cap     int
}

// NewLog returns an empty Log retaining at most capacity records (the
// package default if capacity <= 0).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &Log{cap: capacity}
}

// OnFirmOrder implements market.Observer.
func (l *Log) OnFirmOrder(commodity string, trans *transaction.Transaction) {
	supplierID, _ := trans.SupplierID()
	requesterID, _ := trans.RequesterID()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.records = append(l.records, TransactionRecord{
		ID:          l.nextID,
		Commodity:   commodity,
		SupplierID:  supplierID,
		RequesterID: requesterID,
		Quantity:    trans.Resource().Quantity(),
		Price:       trans.Price(),
	})
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
}

// Since returns every retained record with ID greater than since, oldest
// first. Records older than the retention window are simply absent,
// rather than erroring -- a caller polling /transactions?since= that falls
// too far behind just gets the oldest entries still held.
func (l *Log) Since(since int64) []TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TransactionRecord, 0, len(l.records))
	for _, r := range l.records {
		if r.ID > since {
			out = append(out, r)
		}
	}
	return out
}
