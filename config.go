//go:build linux

package likemod

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNoKernelConfig is returned when no kernel config source is available.
var ErrNoKernelConfig = errors.New("no kernel config found")

// configSource describes a kernel config file location.
type configSource struct {
	path       string
	compressed bool
}

// kernelConfigSources lists config locations in priority order:
//  1. /proc/config.gz (requires CONFIG_IKCONFIG_PROC=y)
//  2. /boot/config-$(uname -r)
//  3. /lib/modules/$(uname -r)/config
func kernelConfigSources(release string) []configSource {
	return []configSource{
		{path: "/proc/config.gz", compressed: true},
		{path: "/boot/config-" + release},
		{path: "/lib/modules/" + release + "/config"},
	}
}

// readKernelConfig reads the first available kernel config source.
func readKernelConfig(release string) (*KernelConfig, error) {
	var lastErr error
	for _, src := range kernelConfigSources(release) {
		kc, err := parseConfigFrom(src)
		if err == nil {
			return kc, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", ErrNoKernelConfig, lastErr)
}

// kernelRelease returns the kernel release string (e.g., "6.17.0-1005-aws").
func kernelRelease() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uname.Release[:]), nil
}

func parseConfigFrom(src configSource) (*KernelConfig, error) {
	f, err := os.Open(src.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if src.compressed {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	}
	return parseConfig(r)
}

// parseConfig extracts CONFIG_* entries set to y or m.
// Comments ("# CONFIG_FOO is not set") and non-tristate values are skipped.
func parseConfig(r io.Reader) (*KernelConfig, error) {
	raw := make(map[string]ConfigValue)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok || !strings.HasPrefix(key, "CONFIG_") {
			continue
		}
		key = strings.TrimPrefix(key, "CONFIG_")
		switch value {
		case "y":
			raw[key] = ConfigBuiltin
		case "m":
			raw[key] = ConfigModule
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewKernelConfig(raw), nil
}
