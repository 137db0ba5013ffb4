package entity

import "fmt"

// PrimaryKeyField is the attribute name every entity answers with its primary key.
const PrimaryKeyField = "id"

// Kind identifies the shape of a Relation.
type Kind int

const (
	KindBelongsTo Kind = iota + 1
	KindHasMany
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "belongs_to"
	case KindHasMany:
		return "has_many"
	default:
		return "unknown"
	}
}

// Relation is a declarative association from one entity type to another.
// The only implementations are BelongsTo and HasMany.
type Relation interface {
	relation()
	// Kind reports whether the relation is a BelongsTo or a HasMany.
	Kind() Kind
	// RelatedType names the related entity type, used to look up its source.
	RelatedType() string
	// ForeignKeyField is the attribute holding the foreign key. For BelongsTo it
	// lives on the declaring entity, for HasMany on the related one.
	ForeignKeyField() string
}

// BelongsTo declares that the child (declaring entity) holds the foreign key
// and the parent is looked up by its primary key.
//
//	entity.BelongsTo{Related: "customer", ForeignKey: "customerId"}
type BelongsTo struct {
	Related    string
	ForeignKey string
}

func (BelongsTo) relation() {}

// Kind implements Relation.
func (BelongsTo) Kind() Kind { return KindBelongsTo }

// RelatedType implements Relation.
func (r BelongsTo) RelatedType() string { return r.Related }

// ForeignKeyField implements Relation.
func (r BelongsTo) ForeignKeyField() string { return r.ForeignKey }

func (r BelongsTo) String() string {
	return fmt.Sprintf("belongs_to(%s via %s)", r.Related, r.ForeignKey)
}

// HasMany declares that related entities point back at the declaring entity
// through ForeignKey. LocalKey is the declaring entity's attribute matched
// against it and defaults to the primary key.
//
//	entity.HasMany{Related: "document", ForeignKey: "appointmentId"}
type HasMany struct {
	Related    string
	ForeignKey string
	LocalKey   string
}

func (HasMany) relation() {}

// Kind implements Relation.
func (HasMany) Kind() Kind { return KindHasMany }

// RelatedType implements Relation.
func (r HasMany) RelatedType() string { return r.Related }

// ForeignKeyField implements Relation.
func (r HasMany) ForeignKeyField() string { return r.ForeignKey }

// LocalKeyField returns the attribute read off the declaring entity.
func (r HasMany) LocalKeyField() string {
	if r.LocalKey == "" {
		return PrimaryKeyField
	}
	return r.LocalKey
}

func (r HasMany) String() string {
	return fmt.Sprintf("has_many(%s via %s)", r.Related, r.ForeignKey)
}

// Relations is the immutable registry of relations a concrete entity type declares,
// keyed by relation name.
type Relations map[string]Relation

// Get returns the relation declared under name.
func (r Relations) Get(name string) (Relation, bool) {
	rel, ok := r[name]
	return rel, ok
}

// Has reports whether name is declared.
func (r Relations) Has(name string) bool {
	_, ok := r[name]
	return ok
}
