//go:build linux

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/leodido/likemod"
)

// replace swaps *target for v until the test ends.
func replace[T any](t *testing.T, target *T, v T) {
	t.Helper()
	prev := *target
	*target = v
	t.Cleanup(func() { *target = prev })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func dummyModInfo() *likemod.ModInfo {
	return &likemod.ModInfo{
		Name:     "dummy",
		Vermagic: "6.8.0-45-generic SMP preempt mod_unload",
		Params:   []likemod.ParamInfo{{Name: "msg"}, {Name: "debug"}},
	}
}

type loadCall struct {
	path   string
	flags  likemod.LoadFlags
	params likemod.Params
}

// stubLoad installs a fake module image and records loads.
func stubLoad(t *testing.T, mi *likemod.ModInfo) *[]loadCall {
	t.Helper()
	var calls []loadCall
	replace(t, &readModInfo, func(string) (*likemod.ModInfo, error) {
		if mi == nil {
			return nil, os.ErrNotExist
		}
		cp := *mi
		return &cp, nil
	})
	replace(t, &loadModule, func(l likemod.Loader, path string) error {
		calls = append(calls, loadCall{path: path, flags: l.Flags(), params: l.Params()})
		return nil
	})
	replace(t, &checkRequirements, func(...likemod.Requirement) error {
		t.Error("check ran without --check")
		return nil
	})
	return &calls
}

// releasesIn flattens requirements into the kernel releases they name.
func releasesIn(reqs []likemod.Requirement) []string {
	var releases []string
	for _, r := range reqs {
		switch r := r.(type) {
		case likemod.FeatureGroup:
			releases = append(releases, releasesIn(r)...)
		case likemod.KernelReleaseRequirement:
			releases = append(releases, r.Release)
		}
	}
	return releases
}

func TestLoad_FlagsOverrideConfig(t *testing.T) {
	cfg := writeConfig(t, "[load]\nignore_vermagic = true\n")

	tests := []struct {
		name string
		args []string
		want likemod.LoadFlags
	}{
		{"config only", nil, likemod.LoadIgnoreVermagic},
		{"flag disables", []string{"--ignore-vermagic=false"}, 0},
		{"flags add", []string{"--ignore-modversion"}, likemod.LoadIgnoreModversions | likemod.LoadIgnoreVermagic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubLoad(t, dummyModInfo())

			args := append([]string{"--config", cfg, "load", "/tmp/dummy.ko"}, tt.args...)
			if _, _, err := execute(t, args...); err != nil {
				t.Fatalf("load error = %v", err)
			}
			if len(*calls) != 1 {
				t.Fatalf("loads = %d, want 1", len(*calls))
			}
			got := (*calls)[0]
			if got.path != "/tmp/dummy.ko" {
				t.Errorf("path = %q", got.path)
			}
			if got.flags != tt.want {
				t.Errorf("flags = %s, want %s", got.flags, tt.want)
			}
		})
	}
}

func TestLoad_ParamValuesKeptWhole(t *testing.T) {
	calls := stubLoad(t, dummyModInfo())

	_, _, err := execute(t, "load", "/tmp/dummy.ko", "--param", "msg=hello world", "--param", "debug=010")
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("loads = %d, want 1", len(*calls))
	}
	params := (*calls)[0].params
	if len(params) != 2 {
		t.Fatalf("params = %q, want 2 entries", params.String())
	}
	if got, want := params.String(), "debug=010 msg=hello world"; got != want {
		t.Errorf("params = %q, want %q", got, want)
	}
}

func TestLoad_UnknownParamWarns(t *testing.T) {
	calls := stubLoad(t, dummyModInfo())

	_, errOut, err := execute(t, "load", "/tmp/dummy.ko", "--param", "bogus=1")
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("loads = %d, want 1", len(*calls))
	}
	if !strings.Contains(errOut, "unknown parameters: bogus") {
		t.Errorf("stderr = %q, want unknown parameter warning", errOut)
	}
}

func TestLoad_CheckRejectsUnknownParam(t *testing.T) {
	calls := stubLoad(t, dummyModInfo())
	replace(t, &checkRequirements, func(...likemod.Requirement) error { return nil })

	_, _, err := execute(t, "load", "/tmp/dummy.ko", "--check", "--param", "bogus=1")
	if err == nil || !strings.Contains(err.Error(), "unknown parameters: bogus") {
		t.Fatalf("load --check error = %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("module loaded despite failed validation")
	}
}

func TestLoad_CheckRequirements(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantReleases []string
	}{
		{"vermagic kept", nil, []string{"6.8.0-45-generic"}},
		{"vermagic ignored", []string{"--ignore-vermagic"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubLoad(t, dummyModInfo())
			var got []likemod.Requirement
			replace(t, &checkRequirements, func(reqs ...likemod.Requirement) error {
				got = reqs
				return &likemod.FeatureError{Feature: "cap-sys-module", Reason: "missing CAP_SYS_MODULE"}
			})

			args := append([]string{"load", "/tmp/dummy.ko", "--check"}, tt.args...)
			_, _, err := execute(t, args...)
			var fe *likemod.FeatureError
			if !errors.As(err, &fe) || fe.Feature != "cap-sys-module" {
				t.Fatalf("load --check error = %v, want FeatureError", err)
			}
			if len(*calls) != 0 {
				t.Fatal("module loaded despite failed check")
			}
			releases := releasesIn(got)
			if strings.Join(releases, ",") != strings.Join(tt.wantReleases, ",") {
				t.Errorf("releases = %v, want %v", releases, tt.wantReleases)
			}
		})
	}
}

type unloadCall struct {
	name        string
	flags       likemod.UnloadFlags
	interval    time.Duration
	hasDeadline bool
	remaining   time.Duration
}

func stubUnloadAsync(t *testing.T, attempts int, result error) *[]unloadCall {
	t.Helper()
	var calls []unloadCall
	replace(t, &unloadAsync, func(ctx context.Context, u likemod.Unloader, name string, interval time.Duration) (int, error) {
		call := unloadCall{name: name, flags: u.Flags(false), interval: interval}
		if deadline, ok := ctx.Deadline(); ok {
			call.hasDeadline = true
			call.remaining = time.Until(deadline)
		}
		calls = append(calls, call)
		return attempts, result
	})
	replace(t, &unloadModule, func(likemod.Unloader, string, bool) error {
		t.Error("single unload ran with --async")
		return nil
	})
	return &calls
}

func TestUnloadAsync_FlagsOverrideConfig(t *testing.T) {
	cfg := writeConfig(t, "[unload]\nforce = true\ninterval = \"50ms\"\ntimeout = \"2s\"\n")

	tests := []struct {
		name         string
		args         []string
		wantFlags    likemod.UnloadFlags
		wantInterval time.Duration
		wantTimeout  time.Duration
	}{
		{"config only", nil, likemod.UnloadForce, 50 * time.Millisecond, 2 * time.Second},
		{"flags win", []string{"--force=false", "--interval", "10ms", "--timeout", "1s"}, 0, 10 * time.Millisecond, time.Second},
		{"no timeout", []string{"--timeout", "0s"}, likemod.UnloadForce, 50 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubUnloadAsync(t, 3, nil)

			args := append([]string{"--config", cfg, "unload", "dummy", "--async"}, tt.args...)
			if _, _, err := execute(t, args...); err != nil {
				t.Fatalf("unload error = %v", err)
			}
			if len(*calls) != 1 {
				t.Fatalf("unloads = %d, want 1", len(*calls))
			}
			got := (*calls)[0]
			if got.name != "dummy" {
				t.Errorf("name = %q", got.name)
			}
			if got.flags != tt.wantFlags {
				t.Errorf("flags = %s, want %s", got.flags, tt.wantFlags)
			}
			if got.interval != tt.wantInterval {
				t.Errorf("interval = %s, want %s", got.interval, tt.wantInterval)
			}
			if tt.wantTimeout == 0 {
				if got.hasDeadline {
					t.Errorf("deadline set, want none")
				}
				return
			}
			if !got.hasDeadline || got.remaining > tt.wantTimeout || got.remaining < tt.wantTimeout-time.Second/2 {
				t.Errorf("deadline in %s (set=%v), want about %s", got.remaining, got.hasDeadline, tt.wantTimeout)
			}
		})
	}
}

func TestUnloadAsync_StillInUse(t *testing.T) {
	stubUnloadAsync(t, 4, context.DeadlineExceeded)

	_, _, err := execute(t, "unload", "dummy", "--async", "--timeout", "2s")
	if err == nil || !strings.Contains(err.Error(), "still in use after 2s (4 attempts)") {
		t.Fatalf("unload error = %v", err)
	}
}

func TestUnloadAsync_NegativeTimeout(t *testing.T) {
	calls := stubUnloadAsync(t, 0, nil)

	_, _, err := execute(t, "unload", "dummy", "--async", "--timeout=-1s")
	if err == nil || !strings.Contains(err.Error(), "must not be negative") {
		t.Fatalf("unload error = %v", err)
	}
	if len(*calls) != 0 {
		t.Fatal("unload ran with a negative timeout")
	}
}

func TestUnload_BusyHint(t *testing.T) {
	var blocking []bool
	replace(t, &unloadModule, func(_ likemod.Unloader, _ string, b bool) error {
		blocking = append(blocking, b)
		return &likemod.SysError{Op: likemod.OpUnload, Errno: syscall.EWOULDBLOCK}
	})

	_, _, err := execute(t, "unload", "dummy", "--blocking")
	if err == nil || !strings.Contains(err.Error(), "retry with --async") {
		t.Fatalf("unload error = %v", err)
	}
	if len(blocking) != 1 || !blocking[0] {
		t.Fatalf("blocking = %v, want [true]", blocking)
	}
}
