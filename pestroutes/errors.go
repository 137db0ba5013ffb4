package pestroutes

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-crm-repository/repository"
)

// ErrRemote is matched with errors.Is on every failure reported by the CRM.
var ErrRemote = errors.New("crm request failed")

const (
	TextCodeRemote      = "CRM_REMOTE_ERROR"
	TextCodeUnreachable = "CRM_UNREACHABLE"
)

// StatusError is a non 2xx CRM response.
type StatusError struct {
	Resource   string
	Action     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm %s/%s: HTTP %d: %s", e.Resource, e.Action, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrRemote }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsRemote reports whether err comes from the CRM.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemote)
}

// classify maps a status error to the error returned by the transport. A 404
// becomes a repository not found error for id.
func classify(err error, id int) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	if se.StatusCode == http.StatusNotFound {
		return repository.NotFound(se.Resource, id)
	}

	return goerrors.Wrap(se, goerrors.CategoryExternal, se.Error()).
		WithTextCode(TextCodeRemote).
		WithMetadata(map[string]any{
			"resource": se.Resource,
			"action":   se.Action,
			"status":   se.StatusCode,
		})
}

func remoteFailure(resource, action string, status int, message string) error {
	if message == "" {
		message = "unsuccessful response"
	}
	se := &StatusError{Resource: resource, Action: action, StatusCode: status, Body: message}
	return goerrors.Wrap(se, goerrors.CategoryExternal, se.Error()).
		WithTextCode(TextCodeRemote).
		WithMetadata(map[string]any{
			"resource": resource,
			"action":   action,
			"status":   status,
		})
}

func transportFailure(resource, action string, err error) error {
	return goerrors.Wrap(errors.Join(ErrRemote, err), goerrors.CategoryExternal,
		fmt.Sprintf("crm %s/%s unreachable", resource, action)).
		WithTextCode(TextCodeUnreachable).
		WithMetadata(map[string]any{
			"resource": resource,
			"action":   action,
		})
}
