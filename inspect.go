package likemod

import "errors"

// ErrModuleNotResident is returned by [Inspect] when no module of that
// name is known to the kernel.
var ErrModuleNotResident = errors.New("module not resident")

// Module states as reported by /sys/module/<name>/initstate.
// Built-in modules have no initstate and are reported as StateBuiltin.
const (
	StateLive    = "live"
	StateComing  = "coming"
	StateGoing   = "going"
	StateBuiltin = "builtin"
)

// ModuleInfo describes a module resident in the running kernel.
type ModuleInfo struct {
	Name     string            `json:"name"`
	State    string            `json:"state"`
	RefCount int               `json:"refcnt"`
	Holders  []string          `json:"holders,omitempty"`
	Taint    string            `json:"taint,omitempty"`
	Version  string            `json:"version,omitempty"`
	CoreSize int64             `json:"coresize,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	// BTF reports whether split BTF for the module could be loaded.
	BTF bool `json:"btf"`
}

// Builtin reports whether the module is compiled into the kernel image.
// Built-in modules cannot be unloaded.
func (mi *ModuleInfo) Builtin() bool {
	return mi.State == StateBuiltin
}

// InUse reports whether removing the module would currently fail
// with EWOULDBLOCK or EBUSY.
func (mi *ModuleInfo) InUse() bool {
	return mi.RefCount > 0 || len(mi.Holders) > 0
}
