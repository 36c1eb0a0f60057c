package likemod

import (
	"fmt"
	"slices"
)

// ProbeResult represents the outcome of a kernel feature probe.
type ProbeResult struct {
	// Supported indicates whether the feature is available.
	Supported bool
	// Error is non-nil if the probe itself failed (not just unsupported).
	Error error
}

// FeatureError represents an error when a required kernel feature is unavailable.
type FeatureError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *FeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feature %s: %s: %v", e.Feature, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature %s: %s", e.Feature, e.Reason)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// SystemFeatures holds the results of the module management probes.
type SystemFeatures struct {
	// Module support in the running kernel.
	Modules      ProbeResult // CONFIG_MODULES (/proc/modules present)
	ModuleUnload ProbeResult // CONFIG_MODULE_UNLOAD
	ForceUnload  ProbeResult // CONFIG_MODULE_FORCE_UNLOAD
	// ModuleBTF: loaded modules expose BTF under /sys/kernel/btf.
	ModuleBTF ProbeResult

	// FinitModule: the finit_module(2) syscall is implemented (kernel 3.8+).
	FinitModule ProbeResult

	// ModulesEnabled: Supported=true means /proc/sys/kernel/modules_disabled is 0.
	// Once set to 1 it cannot be cleared until reboot.
	ModulesEnabled ProbeResult

	// HasCapSysModule: CAP_SYS_MODULE is in the effective set of this process.
	HasCapSysModule ProbeResult

	// Signature and lockdown state. These are reported for diagnostics only:
	// both can make the kernel reject a load that passes every other check.
	// SigEnforced: Supported=true means unsigned modules are refused.
	SigEnforced ProbeResult
	// Lockdown is the active lockdown mode ("none", "integrity",
	// "confidentiality"), empty if the lockdown LSM is not available.
	Lockdown string

	// Kernel config (optional, may be nil if not probed)
	KernelConfig *KernelConfig

	// Metadata
	KernelVersion string
}

// ConfigValue represents a kernel configuration option's state.
type ConfigValue int

const (
	// ConfigNotSet means the option is not set or not found.
	ConfigNotSet ConfigValue = iota
	// ConfigModule means the option is set to =m (module).
	ConfigModule
	// ConfigBuiltin means the option is set to =y (built-in).
	ConfigBuiltin
)

// IsEnabled returns true if the config option is set (either =m or =y).
func (v ConfigValue) IsEnabled() bool {
	return v == ConfigModule || v == ConfigBuiltin
}

// IsBuiltin returns true if the config option is built-in (=y).
func (v ConfigValue) IsBuiltin() bool {
	return v == ConfigBuiltin
}

func (v ConfigValue) String() string {
	switch v {
	case ConfigNotSet:
		return "not set"
	case ConfigModule:
		return "m"
	case ConfigBuiltin:
		return "y"
	default:
		return fmt.Sprintf("ConfigValue(%d)", v)
	}
}

// KernelConfig holds parsed kernel configuration values.
type KernelConfig struct {
	raw map[string]ConfigValue

	// Convenience fields for the options module management depends on.
	Modules        ConfigValue // CONFIG_MODULES
	ModuleUnload   ConfigValue // CONFIG_MODULE_UNLOAD
	ForceUnload    ConfigValue // CONFIG_MODULE_FORCE_UNLOAD
	ModVersions    ConfigValue // CONFIG_MODVERSIONS
	ModuleSig      ConfigValue // CONFIG_MODULE_SIG
	ModuleSigForce ConfigValue // CONFIG_MODULE_SIG_FORCE
	BTFModules     ConfigValue // CONFIG_DEBUG_INFO_BTF_MODULES
}

// Get returns the ConfigValue for a kernel config key.
// The key should not include the CONFIG_ prefix.
func (kc *KernelConfig) Get(key string) ConfigValue {
	if kc == nil || kc.raw == nil {
		return ConfigNotSet
	}
	return kc.raw[key]
}

// IsSet returns true if the config option is enabled (=m or =y).
func (kc *KernelConfig) IsSet(key string) bool {
	return kc.Get(key).IsEnabled()
}

// NewKernelConfig creates a KernelConfig from a raw config map.
// The map is copied to ensure immutability after construction.
func NewKernelConfig(raw map[string]ConfigValue) *KernelConfig {
	copied := make(map[string]ConfigValue, len(raw))
	for k, v := range raw {
		copied[k] = v
	}
	return &KernelConfig{
		raw:            copied,
		Modules:        copied["MODULES"],
		ModuleUnload:   copied["MODULE_UNLOAD"],
		ForceUnload:    copied["MODULE_FORCE_UNLOAD"],
		ModVersions:    copied["MODVERSIONS"],
		ModuleSig:      copied["MODULE_SIG"],
		ModuleSigForce: copied["MODULE_SIG_FORCE"],
		BTFModules:     copied["DEBUG_INFO_BTF_MODULES"],
	}
}

// Feature represents a kernel capability that can be checked via [Check].
type Feature int

const (
	// FeatureModules requires loadable module support (CONFIG_MODULES).
	FeatureModules Feature = iota
	// FeatureModuleUnload requires module removal support (CONFIG_MODULE_UNLOAD).
	FeatureModuleUnload
	// FeatureForceUnload requires forced removal support (CONFIG_MODULE_FORCE_UNLOAD).
	FeatureForceUnload
	// FeatureFinitModule requires the finit_module(2) syscall.
	FeatureFinitModule
	// FeatureModulesEnabled requires module loading not to be disabled at runtime.
	FeatureModulesEnabled
	// FeatureCapSysModule requires the CAP_SYS_MODULE capability.
	FeatureCapSysModule
	// FeatureModuleBTF requires BTF for loaded modules.
	FeatureModuleBTF
)

var featureNames = map[Feature]string{
	FeatureModules:        "modules",
	FeatureModuleUnload:   "module-unload",
	FeatureForceUnload:    "force-unload",
	FeatureFinitModule:    "finit-module",
	FeatureModulesEnabled: "modules-enabled",
	FeatureCapSysModule:   "cap-sys-module",
	FeatureModuleBTF:      "module-btf",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Feature(%d)", f)
}

// FeatureValues returns every known [Feature] in declaration order.
func FeatureValues() []Feature {
	values := make([]Feature, 0, len(featureNames))
	for f := range featureNames {
		values = append(values, f)
	}
	slices.Sort(values)
	return values
}

// FeatureNames returns the names of every known [Feature] in declaration order.
func FeatureNames() []string {
	values := FeatureValues()
	names := make([]string, 0, len(values))
	for _, f := range values {
		names = append(names, f.String())
	}
	return names
}
