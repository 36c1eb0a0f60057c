package likemod

import (
	"errors"
	"fmt"
	"syscall"
)

// Operation names carried by [SysError].
const (
	OpLoad   = "load module"
	OpUnload = "unload module"
	OpTimer  = "rate-limit timer"
)

var (
	// ErrUnsupportedPlatform is returned by every operation on non-Linux platforms.
	ErrUnsupportedPlatform = errors.New("kernel modules are only supported on Linux")

	// ErrEmptyName is returned when unloading without a module name.
	ErrEmptyName = errors.New("empty module name")

	// ErrInvalidInterval is returned when an async unload is requested
	// with a retry interval that is not strictly positive.
	ErrInvalidInterval = errors.New("retry interval must be positive")
)

// SysError reports a failed privileged call.
//
// Errno is the raw error code set by the kernel and Op names the operation
// that failed. SysError unwraps to Errno, so callers can match specific
// conditions with errors.Is:
//
//	if errors.Is(err, unix.EEXIST) {
//	    // module already resident
//	}
type SysError struct {
	Op    string
	Errno syscall.Errno
}

func (e *SysError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Errno)
}

func (e *SysError) Unwrap() error {
	return e.Errno
}

// newSysError maps err to a *SysError for op. Errors that do not carry an
// errno are wrapped with the operation name instead.
func newSysError(op string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &SysError{Op: op, Errno: errno}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsBusy reports whether err is the would-block condition returned by a
// non-blocking unload of a module that is still in use.
func IsBusy(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK)
}
