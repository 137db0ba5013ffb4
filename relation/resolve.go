package relation

import (
	"context"

	"github.com/goliatone/go-crm-repository/entity"
)

// Resolve loads relation name of a single entity eagerly, with at most one
// call to source. Errors from source propagate unchanged.
func Resolve(ctx context.Context, source Source, e entity.Entity, name string, rel entity.Relation) error {
	value, err := resolveOne(ctx, source, e, rel)
	if err != nil {
		return err
	}
	return entity.SetRelated(e, name, value)
}

func resolveOne(ctx context.Context, source Source, e entity.Entity, rel entity.Relation) (any, error) {
	switch r := rel.(type) {
	case entity.BelongsTo:
		return resolveBelongsTo(ctx, source, e, r)
	case *entity.BelongsTo:
		return resolveBelongsTo(ctx, source, e, *r)
	case entity.HasMany:
		return resolveHasMany(ctx, source, e, r)
	case *entity.HasMany:
		return resolveHasMany(ctx, source, e, *r)
	default:
		return nil, unsupported(rel)
	}
}

func resolveBelongsTo(ctx context.Context, source Source, e entity.Entity, rel entity.BelongsTo) (any, error) {
	key, ok := e.Attribute(rel.ForeignKey)
	if !ok {
		return nil, nil
	}

	parent, err := source.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	return parent, nil
}

func resolveHasMany(ctx context.Context, source Source, e entity.Entity, rel entity.HasMany) (any, error) {
	key, ok := e.Attribute(rel.LocalKeyField())
	if !ok {
		return []entity.Entity{}, nil
	}

	children, err := source.SearchBy(ctx, rel.ForeignKey, []int{key})
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []entity.Entity{}
	}
	return children, nil
}

// LoadBatch resolves relation name across a whole collection with exactly
// one call to source, or none when the collection is empty or every key is
// null. Entities whose key matched nothing receive an explicit empty value.
func LoadBatch(ctx context.Context, source Source, entities []entity.Entity, name string, rel entity.Relation) error {
	if len(entities) == 0 {
		return nil
	}

	strategy, err := StrategyFor(rel)
	if err != nil {
		return err
	}

	picker := strategy.Picker(source)
	for _, e := range entities {
		picker.PickFrom(e)
	}

	if picker.Len() == 0 {
		return strategy.Assign(entities, name, picker, nil)
	}

	result, err := strategy.Fetch(ctx, picker)
	if err != nil {
		return err
	}
	return strategy.Assign(entities, name, picker, result)
}
