//go:build linux

package likemod

import (
	"fmt"
)

// Check validates the specified requirements and returns a *[FeatureError]
// for the first unsatisfied requirement, or nil if all are met.
// Kernel config is always probed to provide actionable diagnostics.
func Check(required ...Requirement) error {
	rs := normalizeRequirements(required)

	opts := probeOptionsFor(rs.features)
	opts = append(opts, WithKernelConfig())
	sf, err := ProbeWith(opts...)
	if err != nil {
		return fmt.Errorf("probe features: %w", err)
	}
	return sf.check(rs)
}

func (sf *SystemFeatures) check(rs requirementSet) error {
	for _, f := range rs.features {
		result, known := sf.Result(f)
		if !known {
			return &FeatureError{Feature: f.String(), Reason: "unknown feature"}
		}
		if !result.Supported {
			return &FeatureError{
				Feature: f.String(),
				Reason:  sf.Diagnose(f),
				Err:     result.Error,
			}
		}
	}

	for _, release := range rs.releases {
		if release == sf.KernelVersion {
			continue
		}
		return &FeatureError{
			Feature: "kernel release " + release,
			Reason: fmt.Sprintf("running kernel is %s; rebuild the module for it or load with vermagic checks disabled",
				sf.KernelVersion),
		}
	}

	return nil
}

// probeOptionsFor returns the probe options needed to evaluate features.
func probeOptionsFor(features []Feature) []ProbeOption {
	var opts []ProbeOption
	for _, f := range features {
		switch f {
		case FeatureModules, FeatureModuleUnload, FeatureForceUnload, FeatureModuleBTF:
			opts = append(opts, WithModuleSupport())
		case FeatureFinitModule:
			opts = append(opts, WithSyscalls())
		case FeatureModulesEnabled, FeatureCapSysModule:
			opts = append(opts, WithCapabilities())
		}
	}
	return opts
}

// Result maps a [Feature] to its corresponding [ProbeResult] in SystemFeatures.
// Returns false as the second value if the feature is unknown.
func (sf *SystemFeatures) Result(f Feature) (ProbeResult, bool) {
	switch f {
	case FeatureModules:
		return sf.Modules, true
	case FeatureModuleUnload:
		return sf.ModuleUnload, true
	case FeatureForceUnload:
		return sf.ForceUnload, true
	case FeatureFinitModule:
		return sf.FinitModule, true
	case FeatureModulesEnabled:
		return sf.ModulesEnabled, true
	case FeatureCapSysModule:
		return sf.HasCapSysModule, true
	case FeatureModuleBTF:
		return sf.ModuleBTF, true
	default:
		return ProbeResult{}, false
	}
}

// Diagnose returns an enriched reason string explaining why a feature
// is not supported and what the operator can do to fix it.
func (sf *SystemFeatures) Diagnose(f Feature) string {
	kc := sf.KernelConfig
	switch f {
	case FeatureModules:
		return "no loadable module support; rebuild kernel with CONFIG_MODULES=y"
	case FeatureModuleUnload:
		if kc != nil && !kc.ModuleUnload.IsBuiltin() {
			return "CONFIG_MODULE_UNLOAD not set; rebuild kernel with CONFIG_MODULE_UNLOAD=y"
		}
		return "module unloading not detected; requires CONFIG_MODULE_UNLOAD=y"
	case FeatureForceUnload:
		if kc == nil {
			return "kernel config not available; cannot confirm CONFIG_MODULE_FORCE_UNLOAD"
		}
		return "CONFIG_MODULE_FORCE_UNLOAD not set; forced removal is refused by this kernel"
	case FeatureFinitModule:
		return "finit_module(2) not implemented; requires kernel 3.8+"
	case FeatureModulesEnabled:
		return "module loading disabled by /proc/sys/kernel/modules_disabled; reboot to re-enable"
	case FeatureCapSysModule:
		return "missing CAP_SYS_MODULE; run as root or add CAP_SYS_MODULE"
	case FeatureModuleBTF:
		if kc != nil && !kc.BTFModules.IsBuiltin() {
			return "CONFIG_DEBUG_INFO_BTF_MODULES not set; rebuild kernel with CONFIG_DEBUG_INFO_BTF_MODULES=y"
		}
		return "no module BTF under /sys/kernel/btf"
	default:
		return "not supported"
	}
}
