package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"BPortal/tools/ids"
)

// MemStore is an in-process Store with the same semantics as the Mongo
// adapter. Tests use it directly; Deny marks a collection unreachable so the
// schema-variant probing paths can be exercised without a live deployment.
type MemStore struct {
	mu     sync.Mutex
	colls  map[string]*memCollection
	denied map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		colls:  make(map[string]*memCollection),
		denied: make(map[string]bool),
	}
}

// Deny makes every operation on the named collection fail, the way a
// permission rule or missing migration does in production.
func (s *MemStore) Deny(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[name] = true
}

func (s *MemStore) Allow(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.denied, name)
}

func (s *MemStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[name]
	if !ok {
		c = &memCollection{
			store: s,
			name:  name,
			docs:  make(map[string]bson.M),
		}
		s.colls[name] = c
	}
	return c
}

func (s *MemStore) deniedColl(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.denied[name]
}

type memSub struct {
	id  int
	q   Query
	fn  func([]Record)
	doc string // non-empty for document subscriptions
	dfn func(bson.M, bool)
}

type memCollection struct {
	store *MemStore
	name  string

	mu      sync.Mutex
	docs    map[string]bson.M
	order   []string
	subs    []*memSub
	nextSub int
}

func (c *memCollection) guard() error {
	if c.store.deniedColl(c.name) {
		return errors.Errorf("collection %s: permission denied", c.name)
	}
	return nil
}

func (c *memCollection) Insert(ctx context.Context, id string, doc bson.M) (string, error) {
	if err := c.guard(); err != nil {
		return "", err
	}
	c.mu.Lock()
	if id == "" {
		id = ids.GenerateString()
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = deepCopy(resolveTimestamps(doc))
	c.mu.Unlock()
	c.notify()
	return id, nil
}

func (c *memCollection) Set(ctx context.Context, id string, doc bson.M) error {
	if err := c.guard(); err != nil {
		return err
	}
	c.mu.Lock()
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = deepCopy(resolveTimestamps(doc))
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *memCollection) Get(ctx context.Context, id string) (bson.M, bool, error) {
	if err := c.guard(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, false, nil
	}
	return deepCopy(doc), true, nil
}

func (c *memCollection) Update(ctx context.Context, id string, u Update) error {
	if err := c.guard(); err != nil {
		return err
	}
	c.mu.Lock()
	doc, ok := c.docs[id]
	if !ok {
		c.mu.Unlock()
		return errors.Errorf("update %s/%s: no such document", c.name, id)
	}
	now := nowMS()
	set := resolveTimestamps(u.Set)
	for k, v := range set {
		setPath(doc, k, v)
	}
	for _, f := range u.ServerTime {
		setPath(doc, f, now)
	}
	for k, v := range u.Inc {
		cur, _ := toInt64(getPath(doc, k))
		setPath(doc, k, cur+v)
	}
	for k, v := range u.AddToSet {
		arr := toSlice(getPath(doc, k))
		found := false
		for _, el := range arr {
			if el == v {
				found = true
				break
			}
		}
		if !found {
			arr = append(arr, v)
		}
		setPath(doc, k, arr)
	}
	for k, v := range u.Pull {
		arr := toSlice(getPath(doc, k))
		out := arr[:0]
		for _, el := range arr {
			if el != v {
				out = append(out, el)
			}
		}
		setPath(doc, k, out)
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *memCollection) Delete(ctx context.Context, id string) error {
	if err := c.guard(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.docs, id)
	for i, d := range c.order {
		if d == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *memCollection) Find(ctx context.Context, q Query) ([]Record, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(q), nil
}

func (c *memCollection) findLocked(q Query) []Record {
	var out []Record
	for _, id := range c.order {
		doc := c.docs[id]
		if matches(doc, q) {
			out = append(out, Record{ID: id, Data: deepCopy(doc)})
		}
	}
	if q.SortBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a := getPath(out[i].Data, q.SortBy)
			b := getPath(out[j].Data, q.SortBy)
			if q.Desc {
				return compareValues(b, a)
			}
			return compareValues(a, b)
		})
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (c *memCollection) Subscribe(ctx context.Context, q Query, fn func([]Record)) (Unsubscribe, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.nextSub++
	sub := &memSub{id: c.nextSub, q: q, fn: fn}
	c.subs = append(c.subs, sub)
	initial := c.findLocked(q)
	c.mu.Unlock()

	fn(initial)
	return func() { c.dropSub(sub.id) }, nil
}

func (c *memCollection) SubscribeDoc(ctx context.Context, id string, fn func(bson.M, bool)) (Unsubscribe, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.nextSub++
	sub := &memSub{id: c.nextSub, doc: id, dfn: fn}
	c.subs = append(c.subs, sub)
	doc, ok := c.docs[id]
	var snapshot bson.M
	if ok {
		snapshot = deepCopy(doc)
	}
	c.mu.Unlock()

	fn(snapshot, ok)
	return func() { c.dropSub(sub.id) }, nil
}

func (c *memCollection) dropSub(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// notify re-runs every subscriber's query outside the lock so a callback can
// touch the store again without deadlocking.
func (c *memCollection) notify() {
	c.mu.Lock()
	subs := make([]*memSub, len(c.subs))
	copy(subs, c.subs)
	type delivery struct {
		sub  *memSub
		recs []Record
		doc  bson.M
		ok   bool
	}
	deliveries := make([]delivery, 0, len(subs))
	for _, s := range subs {
		if s.doc != "" {
			doc, ok := c.docs[s.doc]
			var snap bson.M
			if ok {
				snap = deepCopy(doc)
			}
			deliveries = append(deliveries, delivery{sub: s, doc: snap, ok: ok})
			continue
		}
		deliveries = append(deliveries, delivery{sub: s, recs: c.findLocked(s.q)})
	}
	c.mu.Unlock()

	for _, d := range deliveries {
		if d.sub.doc != "" {
			d.sub.dfn(d.doc, d.ok)
		} else {
			d.sub.fn(d.recs)
		}
	}
}

// ---- document helpers ----

func matches(doc bson.M, q Query) bool {
	for k, want := range q.Eq {
		if !valueEqual(getPath(doc, k), want) {
			return false
		}
	}
	for k, member := range q.Contains {
		arr := toSlice(getPath(doc, k))
		found := false
		for _, el := range arr {
			if el == member {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.PrefixField != "" {
		s, _ := getPath(doc, q.PrefixField).(string)
		if !strings.HasPrefix(s, q.Prefix) {
			return false
		}
	}
	return true
}

func getPath(doc bson.M, path string) interface{} {
	parts := strings.Split(path, ".")
	var cur interface{} = doc
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(cur[p])
		if !ok {
			next = bson.M{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func asMap(v interface{}) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return bson.M(m), true
	}
	return nil, false
}

func toSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case []interface{}:
		return s
	case []string:
		out := make([]interface{}, len(s))
		for i, el := range s {
			out[i] = el
		}
		return out
	}
	return nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func valueEqual(a, b interface{}) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok2 := toInt64(b); ok2 {
			return ai == bi
		}
	}
	return a == b
}

func compareValues(a, b interface{}) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok2 := toInt64(b); ok2 {
			return ai < bi
		}
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return as < bs
}

func deepCopy(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return deepCopy(t)
	case map[string]interface{}:
		return deepCopy(bson.M(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = copyValue(el)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	}
	return v
}
