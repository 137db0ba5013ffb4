package repositorycache

import (
	"context"
)

// TagFunc adds resource specific tags to a read, for example a geographic
// bucket for a location search. It receives the method arguments.
type TagFunc func(method Method, args ...any) []string

type requestTagsKey struct{}

// WithCacheTags attaches tags to every read made with ctx, so a caller can
// flush what one request cached.
func WithCacheTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	set := newTagSet(cacheTagsFromContext(ctx)...)
	before := len(set.list)
	set.add(tags...)
	if len(set.list) == before {
		return ctx
	}
	return context.WithValue(ctx, requestTagsKey{}, set.list)
}

func cacheTagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	tags, _ := ctx.Value(requestTagsKey{}).([]string)
	if len(tags) == 0 {
		return nil
	}
	return append([]string(nil), tags...)
}

// readTags collects the method tag, the TagFunc tags and the request tags.
func (c *CachedRepository[T]) readTags(ctx context.Context, method Method, args ...any) []string {
	set := newTagSet(c.keys.Tag(method))
	if c.opts.tagFunc != nil {
		set.add(c.opts.tagFunc(method, args...)...)
	}
	set.add(cacheTagsFromContext(ctx)...)
	return set.list
}

// tagSet keeps tags in insertion order without blanks or repeats.
type tagSet struct {
	seen map[string]bool
	list []string
}

func newTagSet(tags ...string) *tagSet {
	s := &tagSet{seen: make(map[string]bool, len(tags))}
	s.add(tags...)
	return s
}

func (s *tagSet) add(tags ...string) {
	for _, tag := range tags {
		if tag == "" || s.seen[tag] {
			continue
		}
		s.seen[tag] = true
		s.list = append(s.list, tag)
	}
}

func dedupeStrings(values []string) []string {
	return newTagSet(values...).list
}
