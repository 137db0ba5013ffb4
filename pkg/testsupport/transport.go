package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-crm-repository/repository"
)

// TransportCall is one recorded FakeTransport invocation.
type TransportCall struct {
	Op       string
	Resource string
	OfficeID int
	IDs      []int
	Criteria string
}

// String renders the call the way assertions compare it, e.g.
// "get customer [1 2]" or "search appointment customerIDIN[1,2]".
func (c TransportCall) String() string {
	switch c.Op {
	case "search":
		return fmt.Sprintf("search %s %s", c.Resource, c.Criteria)
	case "get":
		return fmt.Sprintf("get %s %v", c.Resource, c.IDs)
	default:
		return fmt.Sprintf("%s %s %v", c.Op, c.Resource, c.IDs)
	}
}

// FakeTransport is an in memory repository.Transport. Documents are stored
// per resource as decoded JSON objects keyed by "<resource>ID", and searches
// support equality, IN and BETWEEN over integer fields plus office scoping
// through "officeID".
type FakeTransport struct {
	mu       sync.Mutex
	docs     map[string][]map[string]any
	calls    []TransportCall
	failures map[string]error
	nextID   int
}

var _ repository.Transport = (*FakeTransport)(nil)

// NewFakeTransport returns an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		docs:     make(map[string][]map[string]any),
		failures: make(map[string]error),
		nextID:   1000,
	}
}

// LoadTransportFixture builds a FakeTransport from a JSON fixture shaped as
// {"<resource>": [ {...}, ... ]}.
func LoadTransportFixture(t *testing.T, path string) *FakeTransport {
	t.Helper()

	var data map[string][]map[string]any
	LoadFixtureJSON(t, path, &data)

	ft := NewFakeTransport()
	for resource, docs := range data {
		ft.Seed(resource, docs...)
	}
	return ft
}

// Seed stores documents for resource.
func (f *FakeTransport) Seed(resource string, docs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[resource] = append(f.docs[resource], docs...)
}

// SeedValues stores values for resource after a JSON round trip.
func (f *FakeTransport) SeedValues(t *testing.T, resource string, values ...any) {
	t.Helper()

	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal seed value: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("failed to unmarshal seed value: %v", err)
		}
		f.Seed(resource, doc)
	}
}

// FailOn makes every op ("search", "get", "create", "update", "delete") on
// resource return err. A nil err clears the failure.
func (f *FakeTransport) FailOn(op, resource string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + resource
	if err == nil {
		delete(f.failures, key)
		return
	}
	f.failures[key] = err
}

// Calls returns the recorded calls.
func (f *FakeTransport) Calls() []TransportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TransportCall(nil), f.calls...)
}

// CallStrings returns the recorded calls rendered with TransportCall.String.
func (f *FakeTransport) CallStrings() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// CountCalls returns how many op calls hit resource.
func (f *FakeTransport) CountCalls(op, resource string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op && c.Resource == resource {
			n++
		}
	}
	return n
}

// ResetCalls drops the recorded calls.
func (f *FakeTransport) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Search implements repository.Transport.
func (f *FakeTransport) Search(ctx context.Context, req repository.SearchRequest) ([]int, error) {
	if err := f.record("search", TransportCall{Resource: req.Resource, OfficeID: req.OfficeID, Criteria: req.Criteria.CacheKey()}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []int
	for _, doc := range f.docs[req.Resource] {
		if req.OfficeID > 0 {
			if office, ok := intField(doc, "officeID"); ok && office != req.OfficeID {
				continue
			}
		}
		if !matches(doc, req.Criteria) {
			continue
		}
		if id, ok := intField(doc, repository.PrimaryKeyField(req.Resource, req.IDField)); ok {
			ids = append(ids, id)
		}
	}

	if req.Offset > 0 {
		if req.Offset >= len(ids) {
			return []int{}, nil
		}
		ids = ids[req.Offset:]
	}
	if req.Limit > 0 && req.Limit < len(ids) {
		ids = ids[:req.Limit]
	}
	return ids, nil
}

// Get implements repository.Transport.
func (f *FakeTransport) Get(ctx context.Context, req repository.GetRequest) ([]json.RawMessage, error) {
	if err := f.record("get", TransportCall{Resource: req.Resource, OfficeID: req.OfficeID, IDs: append([]int(nil), req.IDs...)}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []json.RawMessage
	for _, id := range req.IDs {
		for _, doc := range f.docs[req.Resource] {
			if docID, ok := intField(doc, repository.PrimaryKeyField(req.Resource, req.IDField)); ok && docID == id {
				data, err := json.Marshal(doc)
				if err != nil {
					return nil, err
				}
				out = append(out, data)
			}
		}
	}
	return out, nil
}

// Create implements repository.Transport.
func (f *FakeTransport) Create(ctx context.Context, resource string, officeID int, payload any) (int, error) {
	if err := f.record("create", TransportCall{Resource: resource, OfficeID: officeID}); err != nil {
		return 0, err
	}

	doc, err := toDoc(payload)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	doc[resource+"ID"] = f.nextID
	if officeID > 0 {
		doc["officeID"] = officeID
	}
	f.docs[resource] = append(f.docs[resource], doc)
	return f.nextID, nil
}

// Update implements repository.Transport.
func (f *FakeTransport) Update(ctx context.Context, resource string, officeID int, id int, payload any) error {
	if err := f.record("update", TransportCall{Resource: resource, OfficeID: officeID, IDs: []int{id}}); err != nil {
		return err
	}

	doc, err := toDoc(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, existing := range f.docs[resource] {
		if docID, ok := intField(existing, resource+"ID"); ok && docID == id {
			for k, v := range doc {
				existing[k] = v
			}
			f.docs[resource][i] = existing
			return nil
		}
	}
	return repository.NotFound(resource, id)
}

// Delete implements repository.Transport.
func (f *FakeTransport) Delete(ctx context.Context, resource string, officeID int, id int) error {
	if err := f.record("delete", TransportCall{Resource: resource, OfficeID: officeID, IDs: []int{id}}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	docs := f.docs[resource]
	for i, existing := range docs {
		if docID, ok := intField(existing, resource+"ID"); ok && docID == id {
			f.docs[resource] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return repository.NotFound(resource, id)
}

func (f *FakeTransport) record(op string, call TransportCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call.Op = op
	f.calls = append(f.calls, call)
	return f.failures[op+":"+call.Resource]
}

func matches(doc map[string]any, criteria repository.Criteria) bool {
	for _, filter := range criteria.Filters() {
		value, ok := intField(doc, filter.Field)
		if !ok {
			return false
		}

		switch filter.Operator {
		case repository.OpEqual, repository.OpIn:
			found := false
			for _, want := range filter.Values {
				if w, ok := toInt(want); ok && w == value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case repository.OpBetween:
			from, _ := toInt(filter.Values[0])
			to, _ := toInt(filter.Values[1])
			if value < from || value > to {
				return false
			}
		case repository.OpGreater:
			if w, _ := toInt(filter.Values[0]); value <= w {
				return false
			}
		case repository.OpLess:
			if w, _ := toInt(filter.Values[0]); value >= w {
				return false
			}
		}
	}
	return true
}

func intField(doc map[string]any, field string) (int, bool) {
	v, ok := doc[field]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func toDoc(payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
