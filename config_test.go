//go:build linux

package likemod

import (
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	input := `#
# Automatically generated file; DO NOT EDIT.
# Linux/x86 6.8.0 Kernel Configuration
#
CONFIG_CC_IS_GCC=y
CONFIG_GCC_VERSION=120300
CONFIG_LOCALVERSION=""
CONFIG_MODULES=y
CONFIG_MODULE_UNLOAD=y
CONFIG_MODULE_FORCE_UNLOAD=y
CONFIG_MODVERSIONS=y
CONFIG_IKCONFIG=m
`

	kc, err := parseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}

	tests := []struct {
		key  string
		want ConfigValue
	}{
		{"MODULES", ConfigBuiltin},
		{"MODULE_UNLOAD", ConfigBuiltin},
		{"MODULE_FORCE_UNLOAD", ConfigBuiltin},
		{"MODVERSIONS", ConfigBuiltin},
		{"IKCONFIG", ConfigModule},
		{"CC_IS_GCC", ConfigBuiltin},
		{"GCC_VERSION", ConfigNotSet},  // numeric value, ignored
		{"LOCALVERSION", ConfigNotSet}, // string value, ignored
		{"NONEXISTENT", ConfigNotSet},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := kc.Get(tt.key)
			if got != tt.want {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestParseConfig_ConvenienceFields(t *testing.T) {
	input := `CONFIG_MODULES=y
CONFIG_MODULE_UNLOAD=y
CONFIG_MODULE_FORCE_UNLOAD=y
CONFIG_MODVERSIONS=y
CONFIG_MODULE_SIG=y
CONFIG_MODULE_SIG_FORCE=y
CONFIG_DEBUG_INFO_BTF_MODULES=y
`

	kc, err := parseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}

	fields := map[string]ConfigValue{
		"Modules":        kc.Modules,
		"ModuleUnload":   kc.ModuleUnload,
		"ForceUnload":    kc.ForceUnload,
		"ModVersions":    kc.ModVersions,
		"ModuleSig":      kc.ModuleSig,
		"ModuleSigForce": kc.ModuleSigForce,
		"BTFModules":     kc.BTFModules,
	}
	for name, v := range fields {
		if v != ConfigBuiltin {
			t.Errorf("%s = %v, want ConfigBuiltin", name, v)
		}
	}
}

func TestParseConfig_Empty(t *testing.T) {
	kc, err := parseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if kc.Get("anything") != ConfigNotSet {
		t.Error("expected ConfigNotSet for empty config")
	}
}

func TestParseConfig_CommentsOnly(t *testing.T) {
	input := `# This is a comment
# CONFIG_MODULE_FORCE_UNLOAD is not set
`
	kc, err := parseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if kc.ForceUnload != ConfigNotSet {
		t.Error("commented-out config should be ConfigNotSet")
	}
}

func TestParseConfig_FromTestdata(t *testing.T) {
	kc, err := parseConfigFrom(configSource{path: "testdata/config-test"})
	if err != nil {
		t.Fatalf("parseConfigFrom() error = %v", err)
	}

	if kc.Modules != ConfigBuiltin {
		t.Errorf("Modules = %v, want ConfigBuiltin", kc.Modules)
	}
	if kc.ModuleUnload != ConfigBuiltin {
		t.Errorf("ModuleUnload = %v, want ConfigBuiltin", kc.ModuleUnload)
	}
	if kc.ForceUnload != ConfigNotSet {
		t.Errorf("ForceUnload = %v, want ConfigNotSet", kc.ForceUnload)
	}
	if kc.ModuleSigForce != ConfigNotSet {
		t.Errorf("ModuleSigForce = %v, want ConfigNotSet", kc.ModuleSigForce)
	}
	if kc.Get("IKCONFIG") != ConfigModule {
		t.Errorf("Get(IKCONFIG) = %v, want ConfigModule", kc.Get("IKCONFIG"))
	}
}

func TestParseConfigFrom_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte("CONFIG_MODULE_FORCE_UNLOAD=y\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	kc, err := parseConfigFrom(configSource{path: path, compressed: true})
	if err != nil {
		t.Fatalf("parseConfigFrom() error = %v", err)
	}
	if kc.ForceUnload != ConfigBuiltin {
		t.Errorf("ForceUnload = %v, want ConfigBuiltin", kc.ForceUnload)
	}
}

func TestParseConfigFrom_MissingFile(t *testing.T) {
	_, err := parseConfigFrom(configSource{path: "/nonexistent/path/config"})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKernelConfigSources(t *testing.T) {
	srcs := kernelConfigSources("6.8.0-45-generic")
	want := []string{
		"/proc/config.gz",
		"/boot/config-6.8.0-45-generic",
		"/lib/modules/6.8.0-45-generic/config",
	}
	if len(srcs) != len(want) {
		t.Fatalf("got %d sources, want %d", len(srcs), len(want))
	}
	for i, src := range srcs {
		if src.path != want[i] {
			t.Errorf("source %d = %q, want %q", i, src.path, want[i])
		}
		if src.compressed != (i == 0) {
			t.Errorf("source %d compressed = %v", i, src.compressed)
		}
	}
}

func TestReadKernelConfig_Sentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrNoKernelConfig)
	if !errors.Is(err, ErrNoKernelConfig) {
		t.Error("errors.Is should match ErrNoKernelConfig")
	}
}
