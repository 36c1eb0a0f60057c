//go:build linux

package likemod

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Cache for Probe() results. Kernel features don't change at runtime,
// so we cache after the first probe to avoid repeated syscalls.
var (
	cachedFeatures *SystemFeatures
	cacheMu        sync.Mutex
	cacheErr       error
)

// probeConfig holds the configuration for a probe operation.
type probeConfig struct {
	moduleSupport bool
	kernelConfig  bool
	capabilities  bool
	syscalls      bool
	security      bool
	procRoot      string // custom /proc (for testing)
	sysRoot       string // custom /sys (for testing)
}

// ProbeOption configures what [ProbeWith] collects.
type ProbeOption func(*probeConfig)

// WithModuleSupport probes module loading and unloading support
// (/proc/modules, CONFIG_MODULE_UNLOAD, CONFIG_MODULE_FORCE_UNLOAD, module BTF).
// Force-unload support can only be confirmed from the kernel config, so
// combine with [WithKernelConfig] for a definite answer.
func WithModuleSupport() ProbeOption {
	return func(c *probeConfig) {
		c.moduleSupport = true
	}
}

// WithKernelConfig parses and includes kernel configuration.
func WithKernelConfig() ProbeOption {
	return func(c *probeConfig) {
		c.kernelConfig = true
	}
}

// WithCapabilities probes CAP_SYS_MODULE and the modules_disabled sysctl.
func WithCapabilities() ProbeOption {
	return func(c *probeConfig) {
		c.capabilities = true
	}
}

// WithSyscalls probes availability of finit_module(2).
func WithSyscalls() ProbeOption {
	return func(c *probeConfig) {
		c.syscalls = true
	}
}

// WithSecurity probes module signature enforcement and kernel lockdown.
func WithSecurity() ProbeOption {
	return func(c *probeConfig) {
		c.security = true
	}
}

// WithProcRoot sets a custom procfs mount point.
// This is primarily for testing; production code uses /proc.
func WithProcRoot(path string) ProbeOption {
	return func(c *probeConfig) {
		c.procRoot = path
	}
}

// WithSysRoot sets a custom sysfs mount point.
// This is primarily for testing; production code uses /sys.
func WithSysRoot(path string) ProbeOption {
	return func(c *probeConfig) {
		c.sysRoot = path
	}
}

// WithAll enables probing of all features.
func WithAll() ProbeOption {
	return func(c *probeConfig) {
		c.moduleSupport = true
		c.kernelConfig = true
		c.capabilities = true
		c.syscalls = true
		c.security = true
	}
}

// ProbeWith probes kernel features based on the provided options.
// Kernel version is always populated (one uname call).
func ProbeWith(opts ...ProbeOption) (*SystemFeatures, error) {
	cfg := &probeConfig{procRoot: "/proc", sysRoot: "/sys"}
	for _, opt := range opts {
		opt(cfg)
	}

	sf := &SystemFeatures{}

	release, err := kernelRelease()
	if err != nil {
		return nil, err
	}
	sf.KernelVersion = release

	// Kernel config first: the other probes fall back on it.
	var kc *KernelConfig
	if cfg.kernelConfig {
		// Ignore errors: kernel config is optional
		kc, _ = readKernelConfig(release)
		sf.KernelConfig = kc
	}

	if cfg.moduleSupport {
		sf.Modules = probeModules(filepath.Join(cfg.procRoot, "modules"))
		sf.ModuleUnload = probeModuleUnload(filepath.Join(cfg.sysRoot, "module"), kc)
		sf.ForceUnload = probeForceUnload(kc)
		sf.ModuleBTF = probeModuleBTF(filepath.Join(cfg.sysRoot, "kernel", "btf"), kc)
	}

	if cfg.syscalls {
		sf.FinitModule = probeFinitModule()
	}

	if cfg.capabilities {
		sf.HasCapSysModule = probeCapSysModule()
		sf.ModulesEnabled = probeModulesEnabled(filepath.Join(cfg.procRoot, "sys", "kernel", "modules_disabled"))
	}

	if cfg.security {
		sf.SigEnforced = probeSigEnforced(filepath.Join(cfg.sysRoot, "module", "module", "parameters", "sig_enforce"), kc)
		sf.Lockdown = readLockdown(filepath.Join(cfg.sysRoot, "kernel", "security", "lockdown"))
	}

	return sf, nil
}

// Probe probes all kernel features and caches the result.
// Subsequent calls return the cached result without re-probing.
// Use [ProbeNoCache] if you need fresh results.
func Probe() (*SystemFeatures, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cachedFeatures != nil || cacheErr != nil {
		return cachedFeatures, cacheErr
	}
	cachedFeatures, cacheErr = ProbeWith(WithAll())
	return cachedFeatures, cacheErr
}

// ProbeNoCache probes all kernel features without using the cache.
// Use this when you need fresh results, e.g., after dropping capabilities.
func ProbeNoCache() (*SystemFeatures, error) {
	return ProbeWith(WithAll())
}

// ResetCache clears cached probe results, forcing the next [Probe] call to re-probe.
// This is primarily useful for testing.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cachedFeatures = nil
	cacheErr = nil
}

// probeModules checks for /proc/modules, which only exists with CONFIG_MODULES.
func probeModules(path string) ProbeResult {
	return probeExists(path)
}

// probeModuleUnload checks for CONFIG_MODULE_UNLOAD.
// Without a kernel config, the refcnt attribute of any loaded module
// is used instead: the kernel only creates it when unloading is supported.
func probeModuleUnload(sysModule string, kc *KernelConfig) ProbeResult {
	if kc != nil {
		return ProbeResult{Supported: kc.ModuleUnload.IsBuiltin()}
	}
	matches, err := filepath.Glob(filepath.Join(sysModule, "*", "refcnt"))
	if err != nil {
		return ProbeResult{Supported: false, Error: err}
	}
	return ProbeResult{Supported: len(matches) > 0}
}

// probeForceUnload checks for CONFIG_MODULE_FORCE_UNLOAD.
// The option leaves no runtime trace, so it needs the kernel config.
func probeForceUnload(kc *KernelConfig) ProbeResult {
	if kc == nil {
		return ProbeResult{Supported: false, Error: ErrNoKernelConfig}
	}
	return ProbeResult{Supported: kc.ForceUnload.IsBuiltin()}
}

// probeModuleBTF checks whether loaded modules get split BTF under
// /sys/kernel/btf (CONFIG_DEBUG_INFO_BTF_MODULES).
func probeModuleBTF(dir string, kc *KernelConfig) ProbeResult {
	if kc != nil {
		return ProbeResult{Supported: kc.BTFModules.IsBuiltin()}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ProbeResult{Supported: false}
		}
		return ProbeResult{Supported: false, Error: err}
	}
	for _, e := range entries {
		if e.Name() != "vmlinux" {
			return ProbeResult{Supported: true}
		}
	}
	return ProbeResult{Supported: false}
}

// probeFinitModule issues finit_module(2) with an invalid descriptor.
// The kernel rejects it with EBADF or EPERM before touching any module
// state; only ENOSYS means the syscall is missing.
func probeFinitModule() ProbeResult {
	var empty byte
	_, _, errno := unix.Syscall(sysFinitModule, ^uintptr(0), uintptr(unsafe.Pointer(&empty)), 0)
	switch {
	case errno == unix.ENOSYS:
		return ProbeResult{Supported: false}
	case errno == 0, errno == unix.EBADF, errno == unix.EPERM:
		return ProbeResult{Supported: true}
	default:
		return ProbeResult{Supported: true, Error: errno}
	}
}

func probeExists(path string) ProbeResult {
	_, err := os.Stat(path)
	if err == nil {
		return ProbeResult{Supported: true}
	}
	if errors.Is(err, os.ErrNotExist) {
		return ProbeResult{Supported: false}
	}
	return ProbeResult{Supported: false, Error: err}
}
