//go:build linux

package likemod

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// Flags returns the finit_module(2) flags for this configuration.
func (l Loader) Flags() LoadFlags {
	return loadFlags(l.ignoreModversion, l.ignoreVermagic)
}

// LoadFile inserts the module image open in f into the running kernel.
//
// The file must stay open for the duration of the call; it is not closed.
// On success the module is resident under the name recorded in its image.
// Failures are returned as *[SysError] with Op [OpLoad]; a module that is
// already resident yields EEXIST. The load is attempted exactly once.
func (l Loader) LoadFile(f *os.File) error {
	if f == nil {
		return &SysError{Op: OpLoad, Errno: unix.EBADF}
	}

	flags := l.Flags()
	params := l.params.String()
	l.log().Debug("finit_module", "file", f.Name(), "params", params, "flags", flags)

	err := syscalls.finitModule(int(f.Fd()), params, flags)
	runtime.KeepAlive(f)
	if err != nil {
		return newSysError(OpLoad, err)
	}
	return nil
}

// LoadPath opens the module image at path read-only and loads it with [Loader.LoadFile].
func (l Loader) LoadPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open module image: %w", err)
	}
	defer f.Close()

	return l.LoadFile(f)
}
