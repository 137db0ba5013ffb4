package relation

import (
	"context"

	"github.com/goliatone/go-crm-repository/entity"
)

// Source is the narrow read contract relation resolution needs from a
// repository of related entities.
type Source interface {
	Find(ctx context.Context, id int) (entity.Entity, error)
	FindMany(ctx context.Context, ids ...int) ([]entity.Entity, error)
	SearchBy(ctx context.Context, field string, values []int) ([]entity.Entity, error)
}

// Sources looks up the Source serving a related entity type.
type Sources interface {
	Source(relatedType string) (Source, error)
}

// SourceFunc adapts a plain function to Sources.
type SourceFunc func(relatedType string) (Source, error)

// Source implements Sources.
func (f SourceFunc) Source(relatedType string) (Source, error) {
	return f(relatedType)
}
