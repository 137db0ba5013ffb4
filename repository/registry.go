package repository

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/relation"
)

// SourceProvider yields a relation source bound to a repository context.
type SourceProvider interface {
	SourceFor(rc Context) relation.Source
}

// RelationSources is what repositories resolve relations through.
type RelationSources interface {
	Scoped(rc Context) relation.Sources
}

// Registry maps related entity type names to the repositories serving them.
// It is safe for concurrent use and may be filled after the repositories
// holding it were built.
type Registry struct {
	providers *xsync.MapOf[string, SourceProvider]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMapOf[string, SourceProvider]()}
}

// Register binds relatedType to provider, replacing any previous binding.
func (r *Registry) Register(relatedType string, provider SourceProvider) {
	r.providers.Store(relatedType, provider)
}

// Lookup returns the provider bound to relatedType.
func (r *Registry) Lookup(relatedType string) (SourceProvider, bool) {
	return r.providers.Load(relatedType)
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, r.providers.Size())
	r.providers.Range(func(key string, _ SourceProvider) bool {
		types = append(types, key)
		return true
	})
	sort.Strings(types)
	return types
}

// Scoped returns Sources whose repositories are scoped to the relation scope
// of rc.
func (r *Registry) Scoped(rc Context) relation.Sources {
	scope := rc.RelationScope()
	return relation.SourceFunc(func(relatedType string) (relation.Source, error) {
		provider, ok := r.providers.Load(relatedType)
		if !ok {
			return nil, relation.UnknownSource(relatedType)
		}
		return provider.SourceFor(scope), nil
	})
}

// AsSource adapts any Repository, including cached ones, to a SourceProvider.
func AsSource[T entity.Entity](repo Repository[T]) SourceProvider {
	return repositorySource[T]{repo: repo}
}

type repositorySource[T entity.Entity] struct {
	repo Repository[T]
}

func (s repositorySource[T]) SourceFor(rc Context) relation.Source {
	return boundSource[T]{repo: s.repo.WithContext(rc)}
}

type boundSource[T entity.Entity] struct {
	repo Repository[T]
}

func (s boundSource[T]) Find(ctx context.Context, id int) (entity.Entity, error) {
	item, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s boundSource[T]) FindMany(ctx context.Context, ids ...int) ([]entity.Entity, error) {
	items, err := s.repo.FindMany(ctx, ids...)
	if err != nil {
		return nil, err
	}
	return entity.Collect(items), nil
}

func (s boundSource[T]) SearchBy(ctx context.Context, field string, values []int) ([]entity.Entity, error) {
	items, err := s.repo.SearchBy(ctx, field, values)
	if err != nil {
		return nil, err
	}
	return entity.Collect(items), nil
}
