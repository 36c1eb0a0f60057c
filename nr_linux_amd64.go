//go:build linux && amd64

package likemod

// Syscall numbers from arch/x86/entry/syscalls/syscall_64.tbl.
const (
	sysFinitModule  = 313
	sysDeleteModule = 176
)
