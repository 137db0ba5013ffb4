// Package sqlrepo adapts go-repository-bun repositories of locally stored
// entities to repository.Repository.
//
// Criteria are translated into bun query modifiers through the Table column
// map; SearchBy and FindMany become "column IN (...)" queries built with
// bun.In. Returned rows are checked against the entity attributes so office
// scoping and null keys behave as they do for remote entities.
//
//	accounts := sqlrepo.New[*crm.Account](crm.AccountTable,
//		bunrepo.NewRepository[*crm.Account](db, handlers), registry)
package sqlrepo
