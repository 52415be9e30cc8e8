// Package docstore is the port onto the hosted document database. The engine
// only ever talks to the store through these interfaces: document CRUD,
// field-path partial updates, atomic array add/remove and numeric increments,
// server timestamps, bounded equality/membership queries, and push-based
// collection/document subscriptions.
package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// ServerTimestamp is a sentinel value; any document field holding it is
// replaced with the store-side time (Unix milliseconds) on write.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// Record is one document plus its id.
type Record struct {
	ID   string
	Data bson.M
}

// Query is the bounded query surface the engine needs. Eq matches equality on
// a (possibly dotted) field path; Contains matches array membership; Prefix
// matches the string range [Prefix, Prefix+"") on PrefixField.
type Query struct {
	Eq          bson.M
	Contains    map[string]string
	PrefixField string
	Prefix      string
	SortBy      string
	Desc        bool
	Limit       int64
}

// Update is a partial document update. ServerTime lists field paths to set to
// the store-side timestamp. AddToSet and Pull have set semantics.
type Update struct {
	Set        bson.M
	Inc        map[string]int64
	AddToSet   map[string]interface{}
	Pull       map[string]interface{}
	ServerTime []string
}

// Unsubscribe tears down a subscription and releases its connection.
type Unsubscribe func()

type Collection interface {
	// Insert writes a new document. An empty id asks the store to assign one.
	Insert(ctx context.Context, id string, doc bson.M) (string, error)
	// Set writes the full document at id, creating it if absent.
	Set(ctx context.Context, id string, doc bson.M) error
	// Get returns the document, reporting existence separately from errors.
	Get(ctx context.Context, id string) (bson.M, bool, error)
	Update(ctx context.Context, id string, u Update) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, q Query) ([]Record, error)

	// Subscribe delivers the full query result immediately and again after
	// every change to the collection, in store-observed order.
	Subscribe(ctx context.Context, q Query, fn func([]Record)) (Unsubscribe, error)
	// SubscribeDoc delivers the document (and its existence) on every change.
	SubscribeDoc(ctx context.Context, id string, fn func(bson.M, bool)) (Unsubscribe, error)
}

type Store interface {
	Collection(name string) Collection
}
