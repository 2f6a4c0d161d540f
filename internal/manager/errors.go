package manager

import "errors"

// busyError signals that a generation is already active.
type busyError struct{}

func (busyError) Error() string { return "a generation is already in progress" }

// IsBusy reports whether err was returned because the single generation
// slot is taken.
func IsBusy(err error) bool {
	var e busyError
	return errors.As(err, &e)
}

// configurationError means generation could not start because of missing or
// unusable settings (no model selected, unparsable model record).
type configurationError struct{ msg string }

func (e configurationError) Error() string { return e.msg }

// ErrConfiguration constructs a configurationError.
func ErrConfiguration(msg string) error { return configurationError{msg: msg} }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	var e configurationError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. the
// binary was built without llama.cpp) so the HTTP layer can return 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// backendError wraps a failure reported by the inference backend.
type backendError struct {
	op  string
	err error
}

func (e backendError) Error() string { return e.op + ": " + e.err.Error() }
func (e backendError) Unwrap() error { return e.err }

// IsBackend reports whether err came from the inference backend.
func IsBackend(err error) bool {
	var e backendError
	return errors.As(err, &e)
}
