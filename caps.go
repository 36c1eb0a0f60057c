//go:build linux

package likemod

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// probeCapSysModule checks whether CAP_SYS_MODULE is in the effective
// capability set of the calling thread.
func probeCapSysModule() ProbeResult {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return ProbeResult{Supported: false, Error: err}
	}
	return ProbeResult{Supported: hasCap(data, unix.CAP_SYS_MODULE)}
}

func hasCap(data [2]unix.CapUserData, capability int) bool {
	return data[capability/32].Effective&(1<<(uint(capability)%32)) != 0
}

// probeModulesEnabled reads /proc/sys/kernel/modules_disabled.
// Supported=true means loading and unloading are still permitted.
// Values: 0=enabled, 1=disabled until reboot.
func probeModulesEnabled(path string) ProbeResult {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No sysctl means no CONFIG_MODULES; reported by the modules probe.
			return ProbeResult{Supported: false}
		}
		return ProbeResult{Supported: false, Error: err}
	}
	return ProbeResult{Supported: strings.TrimSpace(string(data)) == "0"}
}

// probeSigEnforced reads /sys/module/module/parameters/sig_enforce.
// The parameter only exists with CONFIG_MODULE_SIG; absent means unsigned
// modules are accepted.
func probeSigEnforced(path string, kc *KernelConfig) ProbeResult {
	if kc != nil && kc.ModuleSigForce.IsBuiltin() {
		return ProbeResult{Supported: true}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ProbeResult{Supported: false}
		}
		return ProbeResult{Supported: false, Error: err}
	}
	return ProbeResult{Supported: strings.TrimSpace(string(data)) == "Y"}
}

// readLockdown returns the bracketed mode of /sys/kernel/security/lockdown,
// e.g. "integrity" for "none [integrity] confidentiality".
func readLockdown(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return parseLockdown(string(data))
}

func parseLockdown(content string) string {
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "[") && strings.HasSuffix(field, "]") {
			return strings.Trim(field, "[]")
		}
	}
	return ""
}
