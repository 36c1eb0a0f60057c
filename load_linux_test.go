//go:build linux

package likemod

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func tempModule(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dummy.ko")
	if err := os.WriteFile(path, []byte("\x7fELF"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLoader_LoadFile(t *testing.T) {
	sys := &fakeSys{}
	useFakeSys(t, sys)
	f := tempModule(t)

	params := Params{}.
		Set("ports", Array{Int(80), Int(443)}).
		Set("debug", Bool(true)).
		Set("verbose", Str(""))
	err := NewLoader().IgnoreVermagic(true).WithParams(params).LoadFile(f)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if len(sys.finitCalls) != 1 {
		t.Fatalf("finit_module called %d times, want 1", len(sys.finitCalls))
	}
	call := sys.finitCalls[0]
	if call.fd != int(f.Fd()) {
		t.Errorf("fd = %d, want %d", call.fd, f.Fd())
	}
	if call.params != "debug=true ports=80,443 verbose" {
		t.Errorf("params = %q", call.params)
	}
	if call.flags != LoadIgnoreVermagic {
		t.Errorf("flags = %v, want %v", call.flags, LoadIgnoreVermagic)
	}
}

func TestLoader_LoadFile_NoParams(t *testing.T) {
	sys := &fakeSys{}
	useFakeSys(t, sys)

	if err := NewLoader().LoadFile(tempModule(t)); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := sys.finitCalls[0]; got.params != "" || got.flags != 0 {
		t.Errorf("finit_module call = %+v, want empty params and flags", got)
	}
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		errno unix.Errno
	}{
		{"already loaded", unix.EEXIST},
		{"no permission", unix.EPERM},
		{"bad image", unix.ENOEXEC},
		{"unknown symbol", unix.ENOENT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useFakeSys(t, &fakeSys{finitErr: tt.errno})

			err := NewLoader().LoadFile(tempModule(t))
			var se *SysError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SysError, got %T (%v)", err, err)
			}
			if se.Op != OpLoad || se.Errno != tt.errno {
				t.Errorf("SysError = %+v", se)
			}
			if !errors.Is(err, tt.errno) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.errno)
			}
		})
	}
}

func TestLoader_LoadFile_Nil(t *testing.T) {
	sys := &fakeSys{}
	useFakeSys(t, sys)

	err := NewLoader().LoadFile(nil)
	if !errors.Is(err, unix.EBADF) {
		t.Fatalf("LoadFile(nil) = %v, want EBADF", err)
	}
	if len(sys.finitCalls) != 0 {
		t.Error("finit_module should not be called for a nil file")
	}
}

func TestLoader_LoadPath(t *testing.T) {
	sys := &fakeSys{}
	useFakeSys(t, sys)

	if err := NewLoader().LoadPath(tempModule(t).Name()); err != nil {
		t.Fatalf("LoadPath() error = %v", err)
	}
	if len(sys.finitCalls) != 1 {
		t.Fatalf("finit_module called %d times, want 1", len(sys.finitCalls))
	}

	err := NewLoader().LoadPath(filepath.Join(t.TempDir(), "missing.ko"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadPath(missing) = %v, want ErrNotExist", err)
	}
	if len(sys.finitCalls) != 1 {
		t.Error("finit_module should not be called when open fails")
	}
}

func TestLoader_IsValue(t *testing.T) {
	base := NewLoader()
	configured := base.IgnoreModversion(true).WithParams(Params{"a": Int(1)})

	if base.Flags() != 0 || base.Params() != nil {
		t.Error("setters modified the receiver")
	}
	if configured.Flags() != LoadIgnoreModversions {
		t.Errorf("Flags() = %v", configured.Flags())
	}
}

func TestRawSyscaller_Preconditions(t *testing.T) {
	var sys rawSyscaller
	if err := sys.finitModule(-1, "", 0); !errors.Is(err, unix.EBADF) {
		t.Errorf("finitModule(-1) = %v, want EBADF", err)
	}
	if err := sys.finitModule(0, "a\x00b", 0); !errors.Is(err, unix.EINVAL) {
		t.Errorf("finitModule(NUL params) = %v, want EINVAL", err)
	}
	if err := sys.deleteModule("a\x00b", 0); !errors.Is(err, unix.EINVAL) {
		t.Errorf("deleteModule(NUL name) = %v, want EINVAL", err)
	}
}
