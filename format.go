package likemod

import (
	"fmt"
	"strings"
)

// String returns a human-readable summary of all probe results.
func (sf *SystemFeatures) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Kernel: %s\n", sf.KernelVersion)
	b.WriteString("\n")

	b.WriteString("Module Support:\n")
	writeResult(&b, "  loadable modules", sf.Modules)
	writeResult(&b, "  module unload", sf.ModuleUnload)
	writeResult(&b, "  forced unload", sf.ForceUnload)
	writeResult(&b, "  module BTF", sf.ModuleBTF)
	b.WriteString("\n")

	b.WriteString("Syscalls:\n")
	writeResult(&b, "  finit_module", sf.FinitModule)
	b.WriteString("\n")

	b.WriteString("Capabilities:\n")
	writeResult(&b, "  CAP_SYS_MODULE", sf.HasCapSysModule)
	writeResult(&b, "  Module loading enabled", sf.ModulesEnabled)
	b.WriteString("\n")

	b.WriteString("Security:\n")
	writeResult(&b, "  Signature enforced", sf.SigEnforced)
	lockdown := sf.Lockdown
	if lockdown == "" {
		lockdown = "unavailable"
	}
	fmt.Fprintf(&b, "  Lockdown: %s\n", lockdown)

	if sf.KernelConfig != nil {
		b.WriteString("\n")
		b.WriteString("Kernel Config:\n")
		writeConfig(&b, "  CONFIG_MODULES", sf.KernelConfig.Modules)
		writeConfig(&b, "  CONFIG_MODULE_UNLOAD", sf.KernelConfig.ModuleUnload)
		writeConfig(&b, "  CONFIG_MODULE_FORCE_UNLOAD", sf.KernelConfig.ForceUnload)
		writeConfig(&b, "  CONFIG_MODVERSIONS", sf.KernelConfig.ModVersions)
		writeConfig(&b, "  CONFIG_MODULE_SIG", sf.KernelConfig.ModuleSig)
		writeConfig(&b, "  CONFIG_MODULE_SIG_FORCE", sf.KernelConfig.ModuleSigForce)
		writeConfig(&b, "  CONFIG_DEBUG_INFO_BTF_MODULES", sf.KernelConfig.BTFModules)
	}

	return b.String()
}

func writeResult(b *strings.Builder, name string, r ProbeResult) {
	status := "no"
	if r.Supported {
		status = "yes"
	}
	if r.Error != nil {
		fmt.Fprintf(b, "%s: %s (error: %v)\n", name, status, r.Error)
	} else {
		fmt.Fprintf(b, "%s: %s\n", name, status)
	}
}

func writeConfig(b *strings.Builder, name string, v ConfigValue) {
	fmt.Fprintf(b, "%s: %s\n", name, v)
}
