//go:build linux && arm64

package likemod

// Syscall numbers from include/uapi/asm-generic/unistd.h.
const (
	sysFinitModule  = 273
	sysDeleteModule = 106
)
