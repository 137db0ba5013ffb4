package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/repository"
)

// Store is the part of a go-repository-bun repository the adapter uses.
// Every bunrepo.Repository[T] satisfies it.
type Store[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...bunrepo.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...bunrepo.SelectCriteria) ([]T, int, error)
	Create(ctx context.Context, record T, criteria ...bunrepo.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...bunrepo.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

// Table describes how entity fields map to SQL columns.
type Table struct {
	// Name is the entity type name used in errors and logs.
	Name string
	// Columns maps entity field names to columns. entity.PrimaryKeyField
	// maps to "id" unless set.
	Columns map[string]string
	// OfficeField is the field office scoping applies to. Empty disables
	// office scoping.
	OfficeField string
}

func (t Table) column(field string) (string, bool) {
	if col, ok := t.Columns[field]; ok && col != "" {
		return col, true
	}
	if field == entity.PrimaryKeyField {
		return "id", true
	}
	return "", false
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Repository adapts a Store of locally stored entities to
// repository.Repository so they can take part in relations with remote
// entities and be cached by the same decorator.
type Repository[T entity.Entity] struct {
	table   Table
	store   Store[T]
	sources repository.RelationSources
	rc      repository.Context
	logger  *slog.Logger
}

var (
	_ repository.Repository[entity.Entity] = (*Repository[entity.Entity])(nil)
	_ repository.Writer[entity.Entity]     = (*Repository[entity.Entity])(nil)
)

// New returns a Repository over store. sources resolve the relations declared
// by T and may be nil when none are requested.
func New[T entity.Entity](table Table, store Store[T], sources repository.RelationSources, opts ...Option) *Repository[T] {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	return &Repository[T]{
		table:   table,
		store:   store,
		sources: sources,
		logger:  o.logger.With("table", table.Name),
	}
}

// Find implements repository.Repository.
func (r *Repository[T]) Find(ctx context.Context, id int) (T, error) {
	var zero T

	item, err := r.store.GetByID(ctx, strconv.Itoa(id))
	if err != nil {
		if isNoRows(err) {
			return zero, repository.NotFound(r.table.Name, id)
		}
		return zero, err
	}
	if !r.inOffice(item) {
		return zero, repository.NotFound(r.table.Name, id)
	}

	if err := r.LoadAllRelations(ctx, []T{item}); err != nil {
		return zero, err
	}
	return item, nil
}

// FindMany implements repository.Repository. Missing ids are skipped.
func (r *Repository[T]) FindMany(ctx context.Context, ids ...int) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	return r.list(ctx, repository.In(entity.PrimaryKeyField, ids), entity.PrimaryKeyField, ids)
}

// Search implements repository.Repository.
func (r *Repository[T]) Search(ctx context.Context, criteria repository.Criteria) ([]T, error) {
	return r.list(ctx, criteria, "", nil)
}

// SearchBy implements repository.Repository with a bun.In query.
func (r *Repository[T]) SearchBy(ctx context.Context, field string, values []int) ([]T, error) {
	if len(values) == 0 {
		return []T{}, nil
	}
	return r.list(ctx, repository.In(field, values), field, values)
}

// Create implements repository.Writer.
func (r *Repository[T]) Create(ctx context.Context, item T) (T, error) {
	return r.store.Create(ctx, item)
}

// Update implements repository.Writer.
func (r *Repository[T]) Update(ctx context.Context, item T) (T, error) {
	return r.store.Update(ctx, item)
}

// Delete implements repository.Writer.
func (r *Repository[T]) Delete(ctx context.Context, id int) error {
	item, err := r.WithContext(r.rc.WithoutRelations()).Find(ctx, id)
	if err != nil {
		return err
	}
	return r.store.Delete(ctx, item)
}

func (r *Repository[T]) Office(officeID int) repository.Repository[T] {
	return r.scoped(r.rc.WithOffice(officeID))
}

func (r *Repository[T]) Paginate(page, pageSize int) repository.Repository[T] {
	return r.scoped(r.rc.WithPage(page, pageSize))
}

func (r *Repository[T]) WithRelated(names ...string) repository.Repository[T] {
	return r.scoped(r.rc.WithRelations(names...))
}

func (r *Repository[T]) DenyLazyLoad() repository.Repository[T] {
	return r.scoped(r.rc.WithLazyLoadDenied(true))
}

func (r *Repository[T]) CurrentContext() repository.Context { return r.rc }

func (r *Repository[T]) WithContext(rc repository.Context) repository.Repository[T] {
	return r.scoped(rc.WithRelations())
}

func (r *Repository[T]) IsLazyLoadDenied() bool { return r.rc.LazyLoadDenied }

// LoadAllRelations implements repository.Repository.
func (r *Repository[T]) LoadAllRelations(ctx context.Context, items []T) error {
	return repository.LoadRelations(ctx, r.sources, r.rc, items)
}

func (r *Repository[T]) scoped(rc repository.Context) *Repository[T] {
	clone := *r
	clone.rc = rc
	return &clone
}

// list runs criteria against the store. When field is set only rows whose
// attribute is one of values are kept, so null keys never match.
func (r *Repository[T]) list(ctx context.Context, criteria repository.Criteria, field string, values []int) ([]T, error) {
	selectors, err := r.selectCriteria(criteria)
	if err != nil {
		return nil, err
	}

	rows, _, err := r.store.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}

	var wanted map[int]struct{}
	if field != "" {
		wanted = make(map[int]struct{}, len(values))
		for _, v := range values {
			wanted[v] = struct{}{}
		}
	}

	items := make([]T, 0, len(rows))
	for _, item := range rows {
		if !r.inOffice(item) {
			continue
		}
		if wanted != nil {
			v, ok := item.Attribute(field)
			if !ok {
				continue
			}
			if _, found := wanted[v]; !found {
				continue
			}
		}
		items = append(items, item)
	}

	r.logger.DebugContext(ctx, "sql search", "criteria", criteria.CacheKey(), "rows", len(items))

	if err := r.LoadAllRelations(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// selectCriteria translates criteria, the office scope and the page into
// bun query modifiers.
func (r *Repository[T]) selectCriteria(criteria repository.Criteria) ([]bunrepo.SelectCriteria, error) {
	out := make([]bunrepo.SelectCriteria, 0, criteria.Len()+3)

	if r.rc.OfficeID > 0 && r.table.OfficeField != "" {
		col, ok := r.table.column(r.table.OfficeField)
		if !ok {
			return nil, unknownField(r.table.Name, r.table.OfficeField)
		}
		out = append(out, whereFilter(col, repository.Filter{
			Field:    r.table.OfficeField,
			Operator: repository.OpEqual,
			Values:   []any{r.rc.OfficeID},
		}))
	}

	for _, f := range criteria.Filters() {
		col, ok := r.table.column(f.Field)
		if !ok {
			return nil, unknownField(r.table.Name, f.Field)
		}
		out = append(out, whereFilter(col, f))
	}

	pk, _ := r.table.column(entity.PrimaryKeyField)
	out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("? ASC", bun.Ident(pk))
	})

	if r.rc.Paginated() {
		limit, offset := r.rc.Limit(), r.rc.Offset()
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(limit).Offset(offset)
		})
	}
	return out, nil
}

func whereFilter(column string, f repository.Filter) bunrepo.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		switch f.Operator {
		case repository.OpIn:
			return q.Where("? IN (?)", bun.Ident(column), bun.In(f.Values))
		case repository.OpBetween:
			return q.Where("? BETWEEN ? AND ?", bun.Ident(column), f.Values[0], f.Values[1])
		case repository.OpGreater:
			return q.Where("? > ?", bun.Ident(column), f.Values[0])
		case repository.OpLess:
			return q.Where("? < ?", bun.Ident(column), f.Values[0])
		default:
			return q.Where("? = ?", bun.Ident(column), f.Values[0])
		}
	}
}

func (r *Repository[T]) inOffice(item T) bool {
	if r.rc.OfficeID <= 0 || r.table.OfficeField == "" {
		return true
	}
	office, ok := item.Attribute(r.table.OfficeField)
	return ok && office == r.rc.OfficeID
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || goerrors.IsNotFound(err)
}
