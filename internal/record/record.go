// Package record defines the domain types shared by the authoritative
// store, the local mirror, and the reconciliation protocol.
package record

// OrderBy selects the index path for bounded recency queries.
type OrderBy string

const (
	// OrderCreated orders by creation sequence, newest first.
	OrderCreated OrderBy = "created"
	// OrderUpdated orders by updated_at_ms, newest first. Soft-deleted rows
	// still participate: a tombstone is the most recent update to that row.
	OrderUpdated OrderBy = "updated"
)

// Valid reports whether o names a known ordering.
func (o OrderBy) Valid() bool {
	return o == OrderCreated || o == OrderUpdated
}

// Customer is an owner-scoped customer record. BusinessID is the
// caller-supplied natural key; CreatedSeq is the storage-assigned creation
// sequence used for newest-first listings.
type Customer struct {
	BusinessID  string `json:"businessId"`
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	IsDeleted   bool   `json:"isDeleted"`
	OwnerID     string `json:"ownerId"`
	CreatedSeq  int64  `json:"createdSeq"`
	UpdatedAtMs int64  `json:"updatedAt"`
}

// Invoice is an owner-scoped invoice record. CustomerID references
// Customer.BusinessID logically; it is not validated against the customer
// table at create or edit time.
type Invoice struct {
	BusinessID  string `json:"businessId"`
	Number      int    `json:"number"`
	Year        int    `json:"year"`
	CustomerID  string `json:"customerId"`
	IsDeleted   bool   `json:"isDeleted"`
	OwnerID     string `json:"ownerId"`
	CreatedSeq  int64  `json:"createdSeq"`
	UpdatedAtMs int64  `json:"updatedAt"`
}

// Counters holds the per-entity add/edit tallies. Both values are
// monotonically non-decreasing for the lifetime of an owner.
type Counters struct {
	Adds  int64 `json:"adds"`
	Edits int64 `json:"edits"`
}

// Behind reports whether c is strictly behind other in either tally.
// Used by the reconciler as the "did anything change" staleness signal.
func (c Counters) Behind(other Counters) bool {
	return c.Adds < other.Adds || c.Edits < other.Edits
}

// Changelog is the single per-owner counter row. Created lazily on the
// first mutation for an owner and never deleted.
type Changelog struct {
	OwnerID   string   `json:"ownerId"`
	Customers Counters `json:"customers"`
	Invoices  Counters `json:"invoices"`
}

// Behind reports whether c is behind other for any entity kind.
func (c Changelog) Behind(other Changelog) bool {
	return c.Customers.Behind(other.Customers) || c.Invoices.Behind(other.Invoices)
}
