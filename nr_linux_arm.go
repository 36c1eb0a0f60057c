//go:build linux && arm

package likemod

// Syscall numbers from arch/arm/tools/syscall.tbl.
const (
	sysFinitModule  = 379
	sysDeleteModule = 129
)
