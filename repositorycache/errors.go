package repositorycache

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNotWritable is returned by the write methods when the wrapped repository
// is read only.
var ErrNotWritable = errors.New("repository is read only")

const TextCodeNotWritable = "REPOSITORY_NOT_WRITABLE"

func notWritable(namespace, op string) error {
	return goerrors.Wrap(ErrNotWritable, goerrors.CategoryInternal,
		fmt.Sprintf("%s: %s not supported, %s", namespace, op, ErrNotWritable)).
		WithTextCode(TextCodeNotWritable).
		WithMetadata(map[string]any{
			"namespace": namespace,
			"operation": op,
		})
}
