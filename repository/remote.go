package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/relation"
)

// Resource describes an entity type served by the CRM.
type Resource[T entity.Entity] struct {
	// Name is the CRM entity name, e.g. "appointment".
	Name string
	// IDField is the primary key in CRM documents. Empty means "<Name>ID".
	IDField string
	// ActiveField is the flag written by Activate and Deactivate. Empty means
	// the entity cannot be activated.
	ActiveField string
	// New returns an empty entity to decode into.
	New func() T
}

// Remote is a Repository over a CRM Transport. Reads follow the two step
// protocol (search ids, then get entities) and then load the relations the
// context requests.
type Remote[T entity.Entity] struct {
	resource  Resource[T]
	transport Transport
	sources   RelationSources
	rc        Context
	logger    *slog.Logger
}

var (
	_ Repository[entity.Entity] = (*Remote[entity.Entity])(nil)
	_ Writer[entity.Entity]     = (*Remote[entity.Entity])(nil)
	_ Activator                 = (*Remote[entity.Entity])(nil)
)

// RemoteOption configures a Remote.
type RemoteOption func(*remoteOptions)

type remoteOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug tracing of remote calls.
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(o *remoteOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewRemote returns a Remote repository of resource. sources may be nil when
// the resource declares no relations.
func NewRemote[T entity.Entity](resource Resource[T], transport Transport, sources RelationSources, opts ...RemoteOption) *Remote[T] {
	o := remoteOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	return &Remote[T]{
		resource:  resource,
		transport: transport,
		sources:   sources,
		logger:    o.logger.With("resource", resource.Name),
	}
}

// Resource returns the CRM resource name.
func (r *Remote[T]) Resource() string { return r.resource.Name }

// Find returns the entity with id or a not found error.
func (r *Remote[T]) Find(ctx context.Context, id int) (T, error) {
	var zero T

	items, err := r.get(ctx, []int{id})
	if err != nil {
		return zero, err
	}

	for _, item := range items {
		if item.PrimaryKey() == id {
			if err := r.LoadAllRelations(ctx, []T{item}); err != nil {
				return zero, err
			}
			return item, nil
		}
	}
	return zero, NotFound(r.resource.Name, id)
}

// FindMany returns the entities among ids that exist. Missing ids are skipped.
func (r *Remote[T]) FindMany(ctx context.Context, ids ...int) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}

	items, err := r.get(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := r.LoadAllRelations(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Search returns the entities matching criteria within the current page.
func (r *Remote[T]) Search(ctx context.Context, criteria Criteria) ([]T, error) {
	ids, err := r.transport.Search(ctx, SearchRequest{
		Resource: r.resource.Name,
		IDField:  r.resource.IDField,
		OfficeID: r.rc.OfficeID,
		Criteria: criteria,
		Limit:    r.rc.Limit(),
		Offset:   r.rc.Offset(),
	})
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "remote search", "criteria", criteria.CacheKey(), "ids", len(ids))

	if len(ids) == 0 {
		return []T{}, nil
	}

	items, err := r.get(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := r.LoadAllRelations(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SearchBy returns the entities whose field is one of values.
func (r *Remote[T]) SearchBy(ctx context.Context, field string, values []int) ([]T, error) {
	if len(values) == 0 {
		return []T{}, nil
	}
	return r.Search(ctx, In(field, values))
}

// Create stores item and returns it as the CRM reports it back.
func (r *Remote[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T

	id, err := r.transport.Create(ctx, r.resource.Name, r.rc.OfficeID, item)
	if err != nil {
		return zero, err
	}
	return r.reload(ctx, id)
}

// Update stores item and returns it as the CRM reports it back.
func (r *Remote[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T

	id := item.PrimaryKey()
	if err := r.transport.Update(ctx, r.resource.Name, r.rc.OfficeID, id, item); err != nil {
		return zero, err
	}
	return r.reload(ctx, id)
}

// Delete removes the entity with id.
func (r *Remote[T]) Delete(ctx context.Context, id int) error {
	return r.transport.Delete(ctx, r.resource.Name, r.rc.OfficeID, id)
}

// Activate sets the active flag of the entity with id.
func (r *Remote[T]) Activate(ctx context.Context, id int) error {
	return r.setActive(ctx, id, 1)
}

// Deactivate clears the active flag of the entity with id.
func (r *Remote[T]) Deactivate(ctx context.Context, id int) error {
	return r.setActive(ctx, id, 0)
}

func (r *Remote[T]) setActive(ctx context.Context, id int, active int) error {
	if r.resource.ActiveField == "" {
		return NotActivatable(r.resource.Name)
	}
	return r.transport.Update(ctx, r.resource.Name, r.rc.OfficeID, id, map[string]any{r.resource.ActiveField: active})
}

func (r *Remote[T]) reload(ctx context.Context, id int) (T, error) {
	return r.WithContext(r.rc.WithoutRelations()).Find(ctx, id)
}

// Office implements Repository.
func (r *Remote[T]) Office(officeID int) Repository[T] {
	return r.scoped(r.rc.WithOffice(officeID))
}

// Paginate implements Repository.
func (r *Remote[T]) Paginate(page, pageSize int) Repository[T] {
	return r.scoped(r.rc.WithPage(page, pageSize))
}

// WithRelated implements Repository.
func (r *Remote[T]) WithRelated(names ...string) Repository[T] {
	return r.scoped(r.rc.WithRelations(names...))
}

// DenyLazyLoad implements Repository.
func (r *Remote[T]) DenyLazyLoad() Repository[T] {
	return r.scoped(r.rc.WithLazyLoadDenied(true))
}

// CurrentContext implements Repository.
func (r *Remote[T]) CurrentContext() Context { return r.rc }

// WithContext implements Repository.
func (r *Remote[T]) WithContext(rc Context) Repository[T] {
	return r.scoped(rc.WithRelations())
}

// IsLazyLoadDenied implements Repository.
func (r *Remote[T]) IsLazyLoadDenied() bool { return r.rc.LazyLoadDenied }

// LoadAllRelations implements Repository.
func (r *Remote[T]) LoadAllRelations(ctx context.Context, items []T) error {
	if len(items) > 0 && r.rc.HasRelations() {
		r.logger.DebugContext(ctx, "loading relations", "relations", r.rc.Relations, "items", len(items), "eager", r.rc.LazyLoadDenied)
	}
	return LoadRelations(ctx, r.sources, r.rc, items)
}

// LoadRelations loads the relations requested by rc on items through
// sources: one batch call per relation, or one call per entity when rc denies
// lazy loading.
func LoadRelations[T entity.Entity](ctx context.Context, sources RelationSources, rc Context, items []T) error {
	if len(items) == 0 || !rc.HasRelations() {
		return nil
	}
	if sources == nil {
		return relation.UnknownSource(rc.Relations[0])
	}

	mode := relation.Lazy
	if rc.LazyLoadDenied {
		mode = relation.Eager
	}
	return relation.Load(ctx, sources.Scoped(rc), entity.Collect(items), rc.Relations, mode)
}

func (r *Remote[T]) scoped(rc Context) *Remote[T] {
	clone := *r
	clone.rc = rc
	return &clone
}

func (r *Remote[T]) get(ctx context.Context, ids []int) ([]T, error) {
	raw, err := r.transport.Get(ctx, GetRequest{
		Resource: r.resource.Name,
		IDField:  r.resource.IDField,
		OfficeID: r.rc.OfficeID,
		IDs:      ids,
	})
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(raw))
	for _, doc := range raw {
		item := r.resource.New()
		if err := json.Unmarshal(doc, item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.resource.Name, err)
		}
		items = append(items, item)
	}
	return items, nil
}
