package repository

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNotFound is matched with errors.Is on every not found error returned by
// repositories in this module.
var ErrNotFound = errors.New("entity not found")

const TextCodeNotFound = "ENTITY_NOT_FOUND"

// NotFound builds the not found error for resource id.
func NotFound(resource string, id int) error {
	return goerrors.Wrap(ErrNotFound, goerrors.CategoryNotFound,
		fmt.Sprintf("%s %d not found", resource, id)).
		WithTextCode(TextCodeNotFound).
		WithMetadata(map[string]any{
			"resource": resource,
			"id":       id,
		})
}

// ErrNotActivatable is matched with errors.Is when Activate or Deactivate is
// called on an entity type without an active flag.
var ErrNotActivatable = errors.New("entity has no active flag")

const TextCodeNotActivatable = "ENTITY_NOT_ACTIVATABLE"

// NotActivatable builds the error for resource types without an active flag.
func NotActivatable(resource string) error {
	return goerrors.Wrap(ErrNotActivatable, goerrors.CategoryBadInput,
		fmt.Sprintf("%s: %s", resource, ErrNotActivatable)).
		WithTextCode(TextCodeNotActivatable).
		WithMetadata(map[string]any{
			"resource": resource,
		})
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || goerrors.IsNotFound(err)
}
