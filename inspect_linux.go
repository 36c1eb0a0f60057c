//go:build linux

package likemod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cilium/ebpf/btf"
)

// Inspect reports the state of the resident module called name.
// Dashes in name are treated as underscores, as the kernel does.
func Inspect(name string) (*ModuleInfo, error) {
	return inspectAt("/sys", name, loadModuleBTF)
}

func loadModuleBTF(name string) error {
	_, err := btf.LoadKernelModuleSpec(name)
	return err
}

func inspectAt(sysRoot, name string, loadBTF func(string) error) (*ModuleInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	name = NormalizeName(name)
	dir := filepath.Join(sysRoot, "module", name)

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("inspect %s: %w", name, ErrModuleNotResident)
		}
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}

	mi := &ModuleInfo{Name: name}

	state, err := readAttr(dir, "initstate")
	switch {
	case errors.Is(err, os.ErrNotExist):
		mi.State = StateBuiltin
	case err != nil:
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	default:
		mi.State = state
	}

	if v, err := readAttr(dir, "refcnt"); err == nil {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: parse refcnt %q: %w", name, v, err)
		}
		mi.RefCount = n
	}
	if v, err := readAttr(dir, "coresize"); err == nil {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: parse coresize %q: %w", name, v, err)
		}
		mi.CoreSize = n
	}
	mi.Taint, _ = readAttr(dir, "taint")
	mi.Version, _ = readAttr(dir, "version")

	holders, err := os.ReadDir(filepath.Join(dir, "holders"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}
	for _, h := range holders {
		mi.Holders = append(mi.Holders, h.Name())
	}
	slices.Sort(mi.Holders)

	params, err := os.ReadDir(filepath.Join(dir, "parameters"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}
	for _, p := range params {
		// Write-only parameters are skipped.
		v, err := readAttr(filepath.Join(dir, "parameters"), p.Name())
		if err != nil {
			continue
		}
		if mi.Params == nil {
			mi.Params = make(map[string]string, len(params))
		}
		mi.Params[p.Name()] = v
	}

	if loadBTF != nil && !mi.Builtin() {
		mi.BTF = loadBTF(name) == nil
	}

	return mi, nil
}

func readAttr(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
