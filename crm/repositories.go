package crm

import (
	"io"
	"log/slog"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/repository"
	"github.com/goliatone/go-crm-repository/repositorycache"
	"github.com/goliatone/go-crm-repository/store/sqlrepo"
)

// AccountTable maps Account fields to the accounts table.
var AccountTable = sqlrepo.Table{
	Name: TypeAccount,
	Columns: map[string]string{
		FieldCustomerID: "customer_id",
		FieldOfficeID:   "office_id",
	},
	OfficeField: FieldOfficeID,
}

// Config tunes the cached repositories built by NewRepositories.
type Config struct {
	// TTL overrides the DefaultTTLs entry of an entity type.
	TTL      map[string]repositorycache.TTLPolicy
	FailOpen bool
	Codec    cache.Codec
	Logger   *slog.Logger
	Metrics  *repositorycache.Metrics
}

// Repositories is the set of cached CRM repositories sharing one relation
// registry. Every repository is registered as the relation source of its
// type, so loading a relation reads through the cache of the related type.
type Repositories struct {
	Registry *repository.Registry

	Customers     *repositorycache.CachedRepository[*Customer]
	Subscriptions *repositorycache.CachedRepository[*Subscription]
	Appointments  *repositorycache.CachedRepository[*Appointment]
	Documents     *repositorycache.CachedRepository[*Document]
	ServiceTypes  *repositorycache.CachedRepository[*ServiceType]
	Spots         *repositorycache.CachedRepository[*Spot]
	Offices       *repositorycache.CachedRepository[*Office]
	// Accounts is nil until UseAccounts is called.
	Accounts *repositorycache.CachedRepository[*Account]

	transport repository.Transport
	cache     cache.CacheService
	cfg       Config
}

// NewRepositories builds the remote repository of every CRM entity type on
// transport, decorates it with svc and registers it in a new registry.
func NewRepositories(transport repository.Transport, svc cache.CacheService, cfg Config) *Repositories {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Repositories{
		Registry:  repository.NewRegistry(),
		transport: transport,
		cache:     svc,
		cfg:       cfg,
	}

	r.Customers = remote(r, CustomerResource)
	r.Subscriptions = remote(r, SubscriptionResource)
	r.Appointments = remote(r, AppointmentResource)
	r.Documents = remote(r, DocumentResource)
	r.ServiceTypes = remote(r, ServiceTypeResource)
	r.Spots = remote(r, SpotResource, repositorycache.WithTagFunc(SpotGeoTags))
	r.Offices = remote(r, OfficeResource)

	return r
}

// UseAccounts decorates the local account repository and registers it as the
// account relation source. Build repo with r.Registry as its relation
// sources so accounts can load their customer.
func (r *Repositories) UseAccounts(repo repository.Repository[*Account]) *repositorycache.CachedRepository[*Account] {
	r.Accounts = decorate(r, TypeAccount, repo)
	return r.Accounts
}

// UseAccountStore adapts a go-repository-bun account store and registers it
// with UseAccounts.
func (r *Repositories) UseAccountStore(store sqlrepo.Store[*Account]) *repositorycache.CachedRepository[*Account] {
	return r.UseAccounts(sqlrepo.New[*Account](AccountTable, store, r.Registry, sqlrepo.WithLogger(r.cfg.Logger)))
}

// Close releases the cache service.
func (r *Repositories) Close() error {
	return r.cache.Close()
}

func remote[T entity.Entity](r *Repositories, resource repository.Resource[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	base := repository.NewRemote(resource, r.transport, r.Registry,
		repository.WithLogger(r.cfg.Logger),
	)
	return decorate[T](r, resource.Name, base, opts...)
}

func decorate[T entity.Entity](r *Repositories, name string, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	all := []repositorycache.Option{
		repositorycache.WithTTL(TTLFor(name, r.cfg.TTL)),
		repositorycache.WithFailOpen(r.cfg.FailOpen),
		repositorycache.WithLogger(r.cfg.Logger),
		repositorycache.WithMetrics(r.cfg.Metrics),
		repositorycache.WithCodec(r.cfg.Codec),
	}
	all = append(all, opts...)

	cached := repositorycache.New[T](base, r.cache, all...)
	r.Registry.Register(name, repository.AsSource[T](cached))
	return cached
}
