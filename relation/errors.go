package relation

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrUnknownSource is returned when no source serves a related type.
	ErrUnknownSource = errors.New("no source for related type")
	// ErrUnsupportedRelation is returned for Relation values other than
	// BelongsTo and HasMany.
	ErrUnsupportedRelation = errors.New("unsupported relation")
)

// UnknownSource builds the error Sources implementations return for a
// related type they do not serve.
func UnknownSource(relatedType string) error {
	return goerrors.Wrap(ErrUnknownSource, goerrors.CategoryInternal,
		fmt.Sprintf("no source registered for %q", relatedType)).
		WithTextCode("RELATION_SOURCE_UNKNOWN").
		WithMetadata(map[string]any{"related": relatedType})
}

func unsupported(rel any) error {
	return goerrors.Wrap(ErrUnsupportedRelation, goerrors.CategoryInternal,
		fmt.Sprintf("unsupported relation %T", rel)).
		WithTextCode("RELATION_UNSUPPORTED")
}
