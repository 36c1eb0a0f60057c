//go:build linux

package likemod

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// sysCaller issues the two privileged module calls.
// It is the only place the package enters the kernel for module management.
type sysCaller interface {
	finitModule(fd int, params string, flags LoadFlags) error
	deleteModule(name string, flags UnloadFlags) error
}

// syscalls is replaced by tests.
var syscalls sysCaller = rawSyscaller{}

type rawSyscaller struct{}

// finitModule issues finit_module(2).
//
// Preconditions: fd is a non-negative descriptor open for reading and params
// has no NUL bytes. The NUL-terminated copy of params is reachable until the
// syscall returns.
func (rawSyscaller) finitModule(fd int, params string, flags LoadFlags) error {
	if fd < 0 {
		return unix.EBADF
	}
	p, err := unix.BytePtrFromString(params)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(sysFinitModule, uintptr(fd), uintptr(unsafe.Pointer(p)), uintptr(flags))
	if errno != 0 {
		return errno
	}
	return nil
}

// deleteModule issues delete_module(2).
//
// Preconditions: name has no NUL bytes. Without O_NONBLOCK the calling
// thread may sleep in the kernel until the module reference count drains.
func (rawSyscaller) deleteModule(name string, flags UnloadFlags) error {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(sysDeleteModule, uintptr(unsafe.Pointer(p)), uintptr(flags), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
