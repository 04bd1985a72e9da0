package instrument

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison using errors.Is
var (
	// ErrNotActive is returned when a context is read outside any activated scope.
	ErrNotActive = errors.New("instrument: context not active, open a scope with Store.Enter, Store.Run or a Sentinel")

	// ErrRoleUnset is returned by a proxy when the active entry has no collaborator for its role.
	ErrRoleUnset = errors.New("instrument: role not set in active context")

	// ErrDecode marks structurally invalid encoded data.
	ErrDecode = errors.New("instrument: decode error")

	// ErrScopesOpen is returned by Store.Close while activations are still open.
	ErrScopesOpen = errors.New("instrument: scopes still open")

	ErrInvalidConfig  = errors.New("instrument: invalid configuration")
	ErrNotInitialized = errors.New("instrument: runtime not initialized")
)

// PersistError describes a failed flush or load of a deferred buffer file.
type PersistError struct {
	Op   string // "flush" or "load"
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
