package crm

import (
	"time"

	"github.com/goliatone/go-crm-repository/repositorycache"
)

const (
	// ReferenceTTL applies to reference data that changes on the order of
	// weeks: service types and offices.
	ReferenceTTL = 30 * 24 * time.Hour
	// SpotSearchTTL applies to spot searches, since availability changes as
	// appointments are booked.
	SpotSearchTTL = 5 * time.Minute
)

// DefaultTTLs returns the TTL table of every entity type.
func DefaultTTLs() map[string]repositorycache.TTLPolicy {
	base := repositorycache.DefaultTTLPolicy()
	reference := repositorycache.TTLPolicy{Default: ReferenceTTL}

	return map[string]repositorycache.TTLPolicy{
		TypeCustomer:     base,
		TypeSubscription: base,
		TypeAppointment:  base,
		TypeDocument:     base,
		TypeAccount:      base,
		TypeServiceType:  reference,
		TypeOffice:       reference,
		TypeSpot:         base.With(repositorycache.MethodSearch, SpotSearchTTL),
	}
}

// TTLFor returns the policy of entity type name, preferring overrides.
func TTLFor(name string, overrides map[string]repositorycache.TTLPolicy) repositorycache.TTLPolicy {
	if policy, ok := overrides[name]; ok {
		return policy
	}
	if policy, ok := DefaultTTLs()[name]; ok {
		return policy
	}
	return repositorycache.DefaultTTLPolicy()
}
