package sqlrepo

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrUnknownField is returned when a filter names a field without a column.
var ErrUnknownField = errors.New("field has no column")

const TextCodeUnknownField = "SQL_UNKNOWN_FIELD"

func unknownField(table, field string) error {
	return goerrors.Wrap(ErrUnknownField, goerrors.CategoryValidation,
		fmt.Sprintf("%s: field %q has no column", table, field)).
		WithTextCode(TextCodeUnknownField).
		WithMetadata(map[string]any{
			"table": table,
			"field": field,
		})
}
