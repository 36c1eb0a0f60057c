//go:build !linux

package likemod

// probeConfig holds the configuration for a probe operation.
// On non-Linux platforms this is a no-op placeholder.
type probeConfig struct{}

// ProbeOption configures what [ProbeWith] collects.
type ProbeOption func(*probeConfig)

func ProbeWith(_ ...ProbeOption) (*SystemFeatures, error) {
	return nil, ErrUnsupportedPlatform
}

func Probe() (*SystemFeatures, error) {
	return nil, ErrUnsupportedPlatform
}

func ProbeNoCache() (*SystemFeatures, error) {
	return nil, ErrUnsupportedPlatform
}

func ResetCache() {}

func WithModuleSupport() ProbeOption    { return func(*probeConfig) {} }
func WithKernelConfig() ProbeOption     { return func(*probeConfig) {} }
func WithCapabilities() ProbeOption     { return func(*probeConfig) {} }
func WithSyscalls() ProbeOption         { return func(*probeConfig) {} }
func WithSecurity() ProbeOption         { return func(*probeConfig) {} }
func WithProcRoot(_ string) ProbeOption { return func(*probeConfig) {} }
func WithSysRoot(_ string) ProbeOption  { return func(*probeConfig) {} }
func WithAll() ProbeOption              { return func(*probeConfig) {} }
