// Package entity defines records hydrated from remote systems together with
// the relations they declare.
//
// Concrete types embed Base, return their declared Relations and expose
// attributes through Attribute so relation resolution never reflects over
// struct fields:
//
//	type Appointment struct {
//		entity.Base
//		ID         int `json:"appointmentID"`
//		CustomerID int `json:"customerID"`
//	}
//
//	var appointmentRelations = entity.Relations{
//		"customer":  entity.BelongsTo{Related: "customer", ForeignKey: "customerID"},
//		"documents": entity.HasMany{Related: "document", ForeignKey: "appointmentID"},
//	}
//
//	func (a *Appointment) Relations() entity.Relations { return appointmentRelations }
//
// Resolved related values live in Base and are only reachable through
// SetRelated, GetRelated and the typed One/Many readers.
package entity

import (
	"sort"
)

// Entity is a record fetched from a remote repository.
type Entity interface {
	// PrimaryKey returns the entity identity.
	PrimaryKey() int
	// Attribute returns an integer attribute by field name. The boolean is false
	// when the attribute is null or unknown.
	Attribute(field string) (int, bool)
	// Relations returns the relations declared by the concrete type.
	Relations() Relations

	related() *Base
}

// Base carries the resolved related values of an entity. Embed it in every
// concrete entity type. Its state is unexported so it never leaks into
// serialized (and therefore cached) representations.
type Base struct {
	values map[string]any
}

func (b *Base) related() *Base { return b }

// SetRelated stores value as the resolved relation name. A nil value is a valid
// resolution meaning "no related entity".
func SetRelated(e Entity, name string, value any) error {
	if !e.Relations().Has(name) {
		return notDeclared(e, name)
	}

	b := e.related()
	if b.values == nil {
		b.values = make(map[string]any)
	}

	switch v := value.(type) {
	case nil:
		b.values[name] = nil
	case []Entity:
		if v == nil {
			v = []Entity{}
		}
		b.values[name] = v
	default:
		b.values[name] = v
	}
	return nil
}

// GetRelated returns the resolved value for relation name: an Entity, a
// []Entity or nil.
func GetRelated(e Entity, name string) (any, error) {
	if !e.Relations().Has(name) {
		return nil, notDeclared(e, name)
	}

	value, ok := e.related().values[name]
	if !ok {
		return nil, notLoaded(e, name)
	}
	return value, nil
}

// IsLoaded reports whether relation name has been resolved on e.
func IsLoaded(e Entity, name string) bool {
	_, ok := e.related().values[name]
	return ok
}

// Loaded returns the sorted names of the resolved relations of e.
func Loaded(e Entity) []string {
	values := e.related().values
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetRelated drops every resolved relation of e.
func ResetRelated(e Entity) {
	e.related().values = nil
}

// One returns a BelongsTo style relation as T. A nil resolution yields the zero T.
func One[T Entity](e Entity, name string) (T, error) {
	var zero T

	value, err := GetRelated(e, name)
	if err != nil || value == nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, typeMismatch(e, name, value)
	}
	return typed, nil
}

// Many returns a HasMany style relation as []T. An empty resolution yields an
// empty, non nil slice.
func Many[T Entity](e Entity, name string) ([]T, error) {
	value, err := GetRelated(e, name)
	if err != nil {
		return nil, err
	}

	items, ok := value.([]Entity)
	if !ok {
		return nil, typeMismatch(e, name, value)
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		typed, ok := item.(T)
		if !ok {
			return nil, typeMismatch(e, name, item)
		}
		out = append(out, typed)
	}
	return out, nil
}

// Collect converts a typed slice into the []Entity form relations work with.
func Collect[T Entity](items []T) []Entity {
	out := make([]Entity, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
