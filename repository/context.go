package repository

import "slices"

// Context carries the per call scope of a repository: the office every read
// is restricted to, optional pagination, the relations to load and whether
// lazy batch loading is denied. It is a value; every With* call returns a
// modified copy and never touches the receiver.
type Context struct {
	OfficeID       int
	Page           int
	PageSize       int
	Relations      []string
	LazyLoadDenied bool
}

// WithOffice returns a copy scoped to officeID.
func (c Context) WithOffice(officeID int) Context {
	c.OfficeID = officeID
	c.Relations = slices.Clone(c.Relations)
	return c
}

// WithPage returns a copy requesting page (1 based) of pageSize items.
func (c Context) WithPage(page, pageSize int) Context {
	c.Page = page
	c.PageSize = pageSize
	c.Relations = slices.Clone(c.Relations)
	return c
}

// WithRelations returns a copy that additionally requests names. Duplicates
// are dropped and request order is kept.
func (c Context) WithRelations(names ...string) Context {
	out := slices.Clone(c.Relations)
	for _, name := range names {
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	c.Relations = out
	return c
}

// WithoutRelations returns a copy requesting no relations.
func (c Context) WithoutRelations() Context {
	c.Relations = nil
	return c
}

// WithLazyLoadDenied returns a copy with the lazy loading flag set to denied.
func (c Context) WithLazyLoadDenied(denied bool) Context {
	c.LazyLoadDenied = denied
	c.Relations = slices.Clone(c.Relations)
	return c
}

// Paginated reports whether a page was requested.
func (c Context) Paginated() bool {
	return c.Page > 0 && c.PageSize > 0
}

// Offset returns the number of items skipped by the requested page.
func (c Context) Offset() int {
	if !c.Paginated() {
		return 0
	}
	return (c.Page - 1) * c.PageSize
}

// Limit returns the page size, or zero when not paginated.
func (c Context) Limit() int {
	if !c.Paginated() {
		return 0
	}
	return c.PageSize
}

// HasRelations reports whether any relation is requested.
func (c Context) HasRelations() bool {
	return len(c.Relations) > 0
}

// RelationScope is the context related entities are loaded with: same office
// and lazy loading policy, no pagination and no relations of its own.
func (c Context) RelationScope() Context {
	return Context{OfficeID: c.OfficeID, LazyLoadDenied: c.LazyLoadDenied}
}
