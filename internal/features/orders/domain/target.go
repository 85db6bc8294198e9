package domain

// Target is what a provider call operates on: one order or an ordered batch.
// A batch of one is still a batch.
type Target struct {
	orders []*Order
	batch  bool
}

// Single targets one order.
func Single(o *Order) Target {
	return Target{orders: []*Order{o}}
}

// Batch targets several orders in the given order.
func Batch(orders ...*Order) Target {
	return Target{orders: orders, batch: true}
}

// IsBatch reports whether the target was built with Batch.
func (t Target) IsBatch() bool { return t.batch }

// Orders returns the targeted orders.
func (t Target) Orders() []*Order { return t.orders }

// Len returns the number of targeted orders.
func (t Target) Len() int { return len(t.orders) }

// Order returns the single targeted order, or nil for a batch.
func (t Target) Order() *Order {
	if t.batch || len(t.orders) == 0 {
		return nil
	}
	return t.orders[0]
}

// ExternalIDs returns the provider ids of the targeted orders, skipping
// orders that were never submitted. Order is preserved.
func (t Target) ExternalIDs() []string {
	ids := make([]string, 0, len(t.orders))
	for _, o := range t.orders {
		if o != nil && o.Submitted() {
			ids = append(ids, *o.ExternalID)
		}
	}
	return ids
}
