//go:build linux && (ppc64 || ppc64le)

package likemod

// Syscall numbers from arch/powerpc/kernel/syscalls/syscall.tbl.
const (
	sysFinitModule  = 353
	sysDeleteModule = 129
)
