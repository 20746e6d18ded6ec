package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/fulfillment/internal/store"
)

// ErrOrderNotFound indicates no record carries the order id.
var ErrOrderNotFound = errors.New("order not found")

// Repository reads orders. Writes go through Reconciler.
type Repository struct {
	store store.Store
}

// NewRepository creates a repository over a record store.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// ErrInvalidRecord marks a stored order record that cannot be decoded.
var ErrInvalidRecord = errors.New("invalid order record")

// Lookup is the result of a batched order read. An id is in Orders when its
// record decoded and in Invalid when it did not. IDs lists both kinds in
// record order.
type Lookup struct {
	IDs     []string
	Orders  map[string]*Order
	Invalid map[string]error
}

// Get returns the order read for id, its decode error, or ErrOrderNotFound.
func (l *Lookup) Get(orderID string) (*Order, error) {
	if err, ok := l.Invalid[orderID]; ok {
		return nil, err
	}
	if o, ok := l.Orders[orderID]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

func (l *Lookup) add(rec store.Record) {
	o, err := Decode(rec)
	id := text(rec.Fields[FieldOrderID])
	if err == nil {
		id = o.OrderID
	}
	if id == "" {
		id = rec.ID
	}
	if _, seen := l.Orders[id]; seen {
		return
	}
	if _, seen := l.Invalid[id]; seen {
		return
	}

	l.IDs = append(l.IDs, id)
	if err != nil {
		l.Invalid[id] = fmt.Errorf("%w %s: %w", ErrInvalidRecord, rec.ID, err)
		return
	}
	l.Orders[id] = o
}

func (r *Repository) lookup(ctx context.Context, filter store.Filter) (*Lookup, error) {
	records, err := r.store.Find(ctx, TableOrders, filter)
	if err != nil {
		return nil, err
	}
	l := &Lookup{
		IDs:     make([]string, 0, len(records)),
		Orders:  make(map[string]*Order, len(records)),
		Invalid: map[string]error{},
	}
	for _, rec := range records {
		l.add(rec)
	}
	return l, nil
}

// Get returns one order by its storefront order id.
func (r *Repository) Get(ctx context.Context, orderID string) (*Order, error) {
	l, err := r.FindByOrderIDs(ctx, []string{orderID})
	if err != nil {
		return nil, err
	}
	return l.Get(orderID)
}

// FindByOrderIDs loads many orders in one query. A record that cannot be
// decoded only affects its own id.
func (r *Repository) FindByOrderIDs(ctx context.Context, orderIDs []string) (*Lookup, error) {
	l, err := r.lookup(ctx, store.Filter{Field: FieldOrderID, Values: orderIDs})
	if err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}
	return l, nil
}

// FindByStatus lists orders currently in a status, oldest first.
func (r *Repository) FindByStatus(ctx context.Context, status Status) (*Lookup, error) {
	l, err := r.lookup(ctx, store.Filter{Field: FieldStatus, Values: []string{status.String()}})
	if err != nil {
		return nil, fmt.Errorf("listing %s orders: %w", status, err)
	}
	return l, nil
}

// History returns the recorded transitions of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID string) ([]Transition, error) {
	records, err := r.store.Find(ctx, TableHistory, store.Filter{Field: FieldOrderID, Values: []string{orderID}})
	if err != nil {
		return nil, fmt.Errorf("loading history of %s: %w", orderID, err)
	}
	out := make([]Transition, 0, len(records))
	for _, rec := range records {
		out = append(out, decodeTransition(rec))
	}
	return out, nil
}
