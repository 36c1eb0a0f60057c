//go:build linux

package likemod

import (
	"strings"

	"golang.org/x/sys/unix"
)

// LoadFlags holds the finit_module(2) flags computed from a [Loader].
type LoadFlags uint

// Load flag bits, from <linux/module.h>.
const (
	LoadIgnoreModversions LoadFlags = unix.MODULE_INIT_IGNORE_MODVERSIONS
	LoadIgnoreVermagic    LoadFlags = unix.MODULE_INIT_IGNORE_VERMAGIC
)

// loadFlags is the only producer of LoadFlags handed to the kernel.
func loadFlags(ignoreModversion, ignoreVermagic bool) LoadFlags {
	var f LoadFlags
	if ignoreModversion {
		f |= LoadIgnoreModversions
	}
	if ignoreVermagic {
		f |= LoadIgnoreVermagic
	}
	return f
}

func (f LoadFlags) String() string {
	var names []string
	if f&LoadIgnoreModversions != 0 {
		names = append(names, "IGNORE_MODVERSIONS")
	}
	if f&LoadIgnoreVermagic != 0 {
		names = append(names, "IGNORE_VERMAGIC")
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}

// UnloadFlags holds the delete_module(2) flags computed from an [Unloader].
type UnloadFlags int

// Unload flag bits. The kernel reuses open(2) flag values here.
const (
	UnloadForce    UnloadFlags = unix.O_TRUNC
	UnloadNonblock UnloadFlags = unix.O_NONBLOCK
)

// unloadFlags is the only producer of UnloadFlags handed to the kernel.
//
// blocking=true sets O_NONBLOCK. Callers depend on this exact mapping,
// do not invert it.
func unloadFlags(force, blocking bool) UnloadFlags {
	switch {
	case !force && !blocking:
		return 0
	case force && !blocking:
		return UnloadForce
	case force && blocking:
		return UnloadForce | UnloadNonblock
	default:
		return UnloadNonblock
	}
}

func (f UnloadFlags) String() string {
	var names []string
	if f&UnloadForce != 0 {
		names = append(names, "O_TRUNC")
	}
	if f&UnloadNonblock != 0 {
		names = append(names, "O_NONBLOCK")
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}
