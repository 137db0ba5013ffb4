package repositorycache

import (
	"time"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/repository"
)

// Method names a cached read. Method values appear in keys, tags and TTL
// tables.
type Method string

const (
	MethodFind     Method = "find"
	MethodFindMany Method = "find_many"
	MethodSearch   Method = "search"
	MethodSearchBy Method = "search_by"
)

// ReadMethods lists every cached method.
func ReadMethods() []Method {
	return []Method{MethodFind, MethodFindMany, MethodSearch, MethodSearchBy}
}

// ParseMethod accepts both the snake case names and the Go method names.
func ParseMethod(s string) (Method, bool) {
	switch toSnake(s) {
	case string(MethodFind):
		return MethodFind, true
	case string(MethodFindMany):
		return MethodFindMany, true
	case string(MethodSearch):
		return MethodSearch, true
	case string(MethodSearchBy):
		return MethodSearchBy, true
	}
	return "", false
}

// DefaultTTL applies to methods without an entry in a TTLPolicy.
const DefaultTTL = 10 * time.Minute

// TTLPolicy maps methods to entry lifetimes.
type TTLPolicy struct {
	Default time.Duration
	Methods map[Method]time.Duration
}

// DefaultTTLPolicy caches every method for DefaultTTL.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{Default: DefaultTTL}
}

// For returns the TTL of method.
func (p TTLPolicy) For(method Method) time.Duration {
	if ttl, ok := p.Methods[method]; ok && ttl > 0 {
		return ttl
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultTTL
}

// With returns a copy of the policy with method set to ttl.
func (p TTLPolicy) With(method Method, ttl time.Duration) TTLPolicy {
	methods := make(map[Method]time.Duration, len(p.Methods)+1)
	for m, d := range p.Methods {
		methods[m] = d
	}
	methods[method] = ttl
	p.Methods = methods
	return p
}

// Keys derives cache keys and tags for one namespace.
type Keys struct {
	Namespace  string
	Serializer cache.KeySerializer
}

// NewKeys returns Keys using the hashed serializer.
func NewKeys(namespace string) Keys {
	return Keys{Namespace: namespace, Serializer: cache.NewHashedKeySerializer(nil)}
}

// Key is namespace::method::args. The office and page of rc are part of the
// arguments; requested relations are not.
func (k Keys) Key(rc repository.Context, method Method, args ...any) string {
	serializer := k.Serializer
	if serializer == nil {
		serializer = cache.NewHashedKeySerializer(nil)
	}

	all := make([]any, 0, len(args)+3)
	all = append(all, rc.OfficeID, rc.Page, rc.PageSize)
	all = append(all, args...)
	return cache.JoinKey(k.Namespace, serializer.SerializeKey(string(method), all...))
}

// Tag is namespace::method.
func (k Keys) Tag(method Method) string {
	return cache.JoinKey(k.Namespace, string(method))
}
