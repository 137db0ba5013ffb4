package relation

import (
	"context"
	"strings"

	"github.com/goliatone/go-crm-repository/entity"
)

// PathSeparator splits nested relation names such as "customer.subscriptions".
const PathSeparator = "."

// Mode selects how Load resolves relations.
type Mode int

const (
	// Lazy loads each relation with one batch call per collection.
	Lazy Mode = iota
	// Eager loads each relation per entity.
	Eager
)

// Load resolves the requested relation names on entities. Nested names are
// resolved level by level: the related entities loaded for "customer" become
// the collection "customer.subscriptions" is batched over. Entities that do not
// declare a root name are skipped.
func Load(ctx context.Context, sources Sources, entities []entity.Entity, names []string, mode Mode) error {
	if len(entities) == 0 || len(names) == 0 {
		return nil
	}

	for _, group := range groupPaths(names) {
		rel, ok := declaredOn(entities, group.root)
		if !ok {
			continue
		}

		source, err := sources.Source(rel.RelatedType())
		if err != nil {
			return err
		}

		targets := declaring(entities, group.root)
		if err := loadLevel(ctx, source, targets, group.root, rel, mode); err != nil {
			return err
		}

		if len(group.children) == 0 {
			continue
		}

		related, err := collectRelated(targets, group.root)
		if err != nil {
			return err
		}
		if err := Load(ctx, sources, related, group.children, mode); err != nil {
			return err
		}
	}
	return nil
}

func loadLevel(ctx context.Context, source Source, entities []entity.Entity, name string, rel entity.Relation, mode Mode) error {
	if mode == Lazy {
		return LoadBatch(ctx, source, entities, name, rel)
	}
	for _, e := range entities {
		if err := Resolve(ctx, source, e, name, rel); err != nil {
			return err
		}
	}
	return nil
}

type pathGroup struct {
	root     string
	children []string
}

// groupPaths groups names by their first segment keeping request order.
func groupPaths(names []string) []*pathGroup {
	var groups []*pathGroup
	index := make(map[string]*pathGroup)

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		root, rest, _ := strings.Cut(name, PathSeparator)

		group, ok := index[root]
		if !ok {
			group = &pathGroup{root: root}
			index[root] = group
			groups = append(groups, group)
		}
		if rest != "" {
			group.children = append(group.children, rest)
		}
	}
	return groups
}

func declaredOn(entities []entity.Entity, name string) (entity.Relation, bool) {
	for _, e := range entities {
		if rel, ok := e.Relations().Get(name); ok {
			return rel, true
		}
	}
	return nil, false
}

func declaring(entities []entity.Entity, name string) []entity.Entity {
	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Relations().Has(name) {
			out = append(out, e)
		}
	}
	return out
}

// collectRelated flattens the loaded values of name, deduplicating by identity.
func collectRelated(entities []entity.Entity, name string) ([]entity.Entity, error) {
	var out []entity.Entity
	seen := make(map[entity.Entity]struct{})

	add := func(e entity.Entity) {
		if e == nil {
			return
		}
		if _, dup := seen[e]; dup {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}

	for _, e := range entities {
		value, err := entity.GetRelated(e, name)
		if err != nil {
			return nil, err
		}
		switch v := value.(type) {
		case entity.Entity:
			add(v)
		case []entity.Entity:
			for _, item := range v {
				add(item)
			}
		}
	}
	return out, nil
}
