package relation

import (
	"context"

	"github.com/goliatone/go-crm-repository/entity"
)

// LazyResolutionStrategy turns one batch fetch into per entity relation values.
type LazyResolutionStrategy interface {
	// Picker returns a fresh picker reading the key that drives the batch.
	Picker(source Source) *Picker
	// Fetch issues the single batch call for the picked values.
	Fetch(ctx context.Context, picker *Picker) ([]entity.Entity, error)
	// Assign sets relation name on every entity from the batch result. An
	// empty result assigns explicit empty values.
	Assign(entities []entity.Entity, name string, picker *Picker, result []entity.Entity) error
}

// StrategyFor returns the strategy matching the relation kind.
func StrategyFor(rel entity.Relation) (LazyResolutionStrategy, error) {
	switch r := rel.(type) {
	case entity.BelongsTo:
		return BelongsToStrategy{Relation: r}, nil
	case *entity.BelongsTo:
		return BelongsToStrategy{Relation: *r}, nil
	case entity.HasMany:
		return HasManyStrategy{Relation: r}, nil
	case *entity.HasMany:
		return HasManyStrategy{Relation: *r}, nil
	default:
		return nil, unsupported(rel)
	}
}

// BelongsToStrategy picks foreign keys off the children and loads the
// parents by primary key.
type BelongsToStrategy struct {
	Relation entity.BelongsTo
}

// Picker implements LazyResolutionStrategy.
func (s BelongsToStrategy) Picker(source Source) *Picker {
	return NewPicker(s.Relation.ForeignKey, source)
}

// Fetch implements LazyResolutionStrategy.
func (s BelongsToStrategy) Fetch(ctx context.Context, picker *Picker) ([]entity.Entity, error) {
	return picker.Source().FindMany(ctx, picker.Values()...)
}

// Assign gives each child the parent whose primary key equals its foreign
// key, or nil.
func (s BelongsToStrategy) Assign(entities []entity.Entity, name string, picker *Picker, result []entity.Entity) error {
	byKey := make(map[int]entity.Entity, len(result))
	for _, parent := range result {
		byKey[parent.PrimaryKey()] = parent
	}

	for _, child := range entities {
		var value any
		if key, ok := child.Attribute(picker.Field()); ok {
			if parent, found := byKey[key]; found {
				value = parent
			}
		}
		if err := entity.SetRelated(child, name, value); err != nil {
			return err
		}
	}
	return nil
}

// HasManyStrategy picks local keys off the parents and searches the related
// entities by foreign key.
type HasManyStrategy struct {
	Relation entity.HasMany
}

// Picker implements LazyResolutionStrategy.
func (s HasManyStrategy) Picker(source Source) *Picker {
	return NewPicker(s.Relation.LocalKeyField(), source)
}

// Fetch implements LazyResolutionStrategy.
func (s HasManyStrategy) Fetch(ctx context.Context, picker *Picker) ([]entity.Entity, error) {
	return picker.Source().SearchBy(ctx, s.Relation.ForeignKey, picker.Values())
}

// Assign gives each parent the subset of the result whose foreign key equals
// its local key. The subset may be empty.
func (s HasManyStrategy) Assign(entities []entity.Entity, name string, picker *Picker, result []entity.Entity) error {
	grouped := make(map[int][]entity.Entity)
	for _, child := range result {
		if key, ok := child.Attribute(s.Relation.ForeignKey); ok {
			grouped[key] = append(grouped[key], child)
		}
	}

	for _, parent := range entities {
		children := []entity.Entity{}
		if key, ok := parent.Attribute(picker.Field()); ok {
			if matched, found := grouped[key]; found {
				children = append(children, matched...)
			}
		}
		if err := entity.SetRelated(parent, name, children); err != nil {
			return err
		}
	}
	return nil
}
