package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// KeyPart is implemented by arguments that know their own stable key form,
// such as query criteria.
type KeyPart interface {
	CacheKey() string
}

// HashKey shortens s to a fixed width hex digest.
func HashKey(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// JoinKey joins key segments with KeySeparator, skipping empty ones.
func JoinKey(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, KeySeparator)
}

// argEncoder renders repository arguments into a readable, deterministic form.
// Ids and id lists, the bulk of CRM lookups, skip reflection entirely.
type argEncoder struct{}

// NewDefaultKeySerializer returns a serializer that renders every argument
// in full: method::arg1::arg2.
func NewDefaultKeySerializer() KeySerializer {
	return argEncoder{}
}

func (e argEncoder) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	var b strings.Builder
	b.WriteString(method)
	for _, arg := range args {
		b.WriteString(KeySeparator)
		e.encode(&b, arg)
	}
	return b.String()
}

func (e argEncoder) encode(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("nil")
	case KeyPart:
		b.WriteString(x.CacheKey())
	case int:
		b.WriteString(strconv.Itoa(x))
	case []int:
		b.WriteByte('[')
		for i, id := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(id))
		}
		b.WriteByte(']')
	case string:
		b.WriteString(strconv.Quote(x))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case time.Time:
		b.WriteString(x.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		b.WriteString(x.String())
	default:
		e.encodeValue(b, reflect.ValueOf(v))
	}
}

func (e argEncoder) encodeValue(b *strings.Builder, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		e.encodeElem(b, rv.Elem())

	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			e.encodeElem(b, rv.Index(i))
		}
		b.WriteByte(']')

	case reflect.Map:
		e.encodeMap(b, rv)

	case reflect.Struct:
		e.encodeStruct(b, rv)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// only stable inside one process
		fmt.Fprintf(b, "%s@%#x", rv.Type(), rv.Pointer())

	default:
		fmt.Fprintf(b, "%v", rv)
	}
}

// encodeElem goes back through encode when the value is reachable as an
// interface so KeyPart and the fast paths still apply.
func (e argEncoder) encodeElem(b *strings.Builder, rv reflect.Value) {
	if rv.CanInterface() {
		e.encode(b, rv.Interface())
		return
	}
	e.encodeValue(b, rv)
}

func (e argEncoder) encodeMap(b *strings.Builder, rv reflect.Value) {
	type pair struct{ k, v string }

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		e.encodeElem(&kb, iter.Key())
		e.encodeElem(&vb, iter.Value())
		pairs = append(pairs, pair{k: kb.String(), v: vb.String()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	b.WriteByte('}')
}

// encodeStruct writes exported fields only.
func (e argEncoder) encodeStruct(b *strings.Builder, rv reflect.Value) {
	rt := rv.Type()
	b.WriteString(rt.Name())
	b.WriteByte('{')
	first := true
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(field.Name)
		b.WriteByte('=')
		e.encodeElem(b, rv.Field(i))
	}
	b.WriteByte('}')
}

// hashedKeySerializer keeps the method readable and hashes the arguments so
// keys stay short enough for every backend.
type hashedKeySerializer struct {
	inner KeySerializer
}

// NewHashedKeySerializer returns a serializer producing method::hash(args).
// A nil inner uses the default serializer for the arguments.
func NewHashedKeySerializer(inner KeySerializer) KeySerializer {
	if inner == nil {
		inner = NewDefaultKeySerializer()
	}
	return &hashedKeySerializer{inner: inner}
}

func (s *hashedKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}
	return method + KeySeparator + HashKey(s.inner.SerializeKey("", args...))
}
