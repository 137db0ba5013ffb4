package entity

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Sentinel errors for relation access. Errors returned by this package wrap
// them, so callers match with errors.Is.
var (
	// ErrRelationNotDeclared is returned when a relation name is not part of the
	// entity's declared relations. It is always a programming error.
	ErrRelationNotDeclared = errors.New("relation not declared")

	// ErrRelationNotLoaded is returned when a declared relation is read before
	// it was resolved.
	ErrRelationNotLoaded = errors.New("relation not loaded")

	// ErrRelatedType is returned by the typed readers when the stored value
	// does not have the requested type.
	ErrRelatedType = errors.New("related value has unexpected type")
)

const (
	TextCodeRelationNotDeclared = "RELATION_NOT_DECLARED"
	TextCodeRelationNotLoaded   = "RELATION_NOT_LOADED"
	TextCodeRelatedType         = "RELATED_TYPE_MISMATCH"
)

func relationError(sentinel error, code string, e Entity, name string) error {
	return goerrors.Wrap(sentinel, goerrors.CategoryInternal, fmt.Sprintf("%s: %T.%s", sentinel, e, name)).
		WithTextCode(code).
		WithMetadata(map[string]any{
			"entity":   fmt.Sprintf("%T", e),
			"relation": name,
		})
}

func notDeclared(e Entity, name string) error {
	return relationError(ErrRelationNotDeclared, TextCodeRelationNotDeclared, e, name)
}

func notLoaded(e Entity, name string) error {
	return relationError(ErrRelationNotLoaded, TextCodeRelationNotLoaded, e, name)
}

func typeMismatch(e Entity, name string, value any) error {
	return goerrors.Wrap(ErrRelatedType, goerrors.CategoryInternal,
		fmt.Sprintf("relation %T.%s holds %T", e, name, value)).
		WithTextCode(TextCodeRelatedType)
}

// IsRelationNotDeclared reports whether err is a not declared relation error.
func IsRelationNotDeclared(err error) bool {
	return errors.Is(err, ErrRelationNotDeclared)
}

// IsRelationNotLoaded reports whether err is a not loaded relation error.
func IsRelationNotLoaded(err error) bool {
	return errors.Is(err, ErrRelationNotLoaded)
}
