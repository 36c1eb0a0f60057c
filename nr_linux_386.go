//go:build linux && 386

package likemod

// Syscall numbers from arch/x86/entry/syscalls/syscall_32.tbl.
const (
	sysFinitModule  = 350
	sysDeleteModule = 129
)
