// Package repository defines the read contract shared by remote, local and
// cached repositories of entities, the scope carried by each call and a
// generic Remote implementation over a CRM Transport.
package repository

import (
	"context"

	"github.com/goliatone/go-crm-repository/entity"
)

// Repository reads entities of one type. Scoping methods (Office, Paginate,
// WithRelated, DenyLazyLoad, WithContext) return a scoped copy and leave the
// receiver untouched, so a shared repository never carries scope between
// logical operations.
type Repository[T entity.Entity] interface {
	Find(ctx context.Context, id int) (T, error)
	FindMany(ctx context.Context, ids ...int) ([]T, error)
	Search(ctx context.Context, criteria Criteria) ([]T, error)
	SearchBy(ctx context.Context, field string, values []int) ([]T, error)

	Office(officeID int) Repository[T]
	Paginate(page, pageSize int) Repository[T]
	WithRelated(names ...string) Repository[T]
	DenyLazyLoad() Repository[T]

	CurrentContext() Context
	WithContext(rc Context) Repository[T]

	// LoadAllRelations resolves the relations requested by the current
	// context on items.
	LoadAllRelations(ctx context.Context, items []T) error
	IsLazyLoadDenied() bool
}

// Writer mutates entities of one type.
type Writer[T entity.Entity] interface {
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, id int) error
}

// Activator toggles the active flag of entities that carry one, such as
// subscriptions.
type Activator interface {
	Activate(ctx context.Context, id int) error
	Deactivate(ctx context.Context, id int) error
}

// ReadWriter combines Repository and Writer.
type ReadWriter[T entity.Entity] interface {
	Repository[T]
	Writer[T]
}
