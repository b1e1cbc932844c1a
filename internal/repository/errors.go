package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness violation or a stale document revision.
	ErrConflict = errors.New("repository: conflict")
	// ErrForbidden indicates the integration is not permitted for the environment.
	ErrForbidden = errors.New("repository: forbidden")
	// ErrInvalidArgument indicates a missing or malformed input.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrStorage indicates the document could not be read or written.
	ErrStorage = errors.New("repository: storage io")
	// ErrFilesystem indicates a copy, scan or removal failure on disk.
	ErrFilesystem = errors.New("repository: filesystem")
	// ErrVerificationFailed indicates the partner rejected the credentials.
	ErrVerificationFailed = errors.New("repository: verification failed")
)

// Kind returns the machine-checkable name of the error family, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidArgument):
		return "validation"
	case errors.Is(err, ErrStorage):
		return "storage_io"
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	default:
		return "internal"
	}
}
