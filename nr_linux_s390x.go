//go:build linux && s390x

package likemod

// Syscall numbers from arch/s390/kernel/syscalls/syscall.tbl.
const (
	sysFinitModule  = 344
	sysDeleteModule = 129
)
