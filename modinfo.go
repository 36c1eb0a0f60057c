package likemod

import (
	"bytes"
	"compress/gzip"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/xi2/xz"
)

var (
	// ErrNoModInfo is returned when an ELF image has no .modinfo section,
	// meaning it is not a kernel module.
	ErrNoModInfo = errors.New("no .modinfo section")

	// ErrImageTooLarge is returned when a compressed image expands past
	// [MaxImageSize].
	ErrImageTooLarge = errors.New("decompressed image too large")
)

// MaxImageSize bounds the decompressed size of a compressed module image.
// The largest in-tree modules with debug info stay well below it.
var MaxImageSize int64 = 1 << 30

// ParamInfo describes a parameter declared by a module image.
type ParamInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// ModInfo is the metadata embedded in a module image.
type ModInfo struct {
	// Name is the name the module will be resident under once loaded.
	Name        string      `json:"name"`
	Version     string      `json:"version,omitempty"`
	License     string      `json:"license,omitempty"`
	Description string      `json:"description,omitempty"`
	Vermagic    string      `json:"vermagic,omitempty"`
	Depends     []string    `json:"depends,omitempty"`
	Params      []ParamInfo `json:"params,omitempty"`
}

// Release returns the kernel release the image was built for,
// the first field of its vermagic string.
func (mi *ModInfo) Release() string {
	release, _, _ := strings.Cut(strings.TrimSpace(mi.Vermagic), " ")
	return release
}

// Param returns the declared parameter called name.
func (mi *ModInfo) Param(name string) (ParamInfo, bool) {
	for _, p := range mi.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamInfo{}, false
}

// Validate reports the entries of p the image does not declare.
// The kernel ignores unknown parameters with a warning, so a typo
// otherwise goes unnoticed.
func (mi *ModInfo) Validate(p Params) error {
	var unknown []string
	for _, name := range p.Names() {
		if _, ok := mi.Param(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("module %s: unknown parameters: %s", mi.Name, strings.Join(unknown, ", "))
	}
	return nil
}

// ReadModInfo reads the metadata of the module image at path.
// Images compressed with gzip, xz or zstd are decompressed in memory.
// When the image carries no name field, it is derived from the file name.
func ReadModInfo(path string) (*ModInfo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("read modinfo: empty path")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read modinfo: %w", err)
	}
	defer f.Close()

	mi, err := ModInfoFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("read modinfo %q: %w", path, err)
	}
	if mi.Name == "" {
		mi.Name = NameFromPath(path)
	}
	return mi, nil
}

// ModInfoFromReader parses the metadata of a module image.
func ModInfoFromReader(r io.ReaderAt) (*ModInfo, error) {
	image, err := decompressImage(r)
	if err != nil {
		return nil, err
	}

	ef, err := elf.NewFile(image)
	if err != nil {
		return nil, fmt.Errorf("parse ELF: %w", err)
	}
	defer ef.Close()

	sec := ef.Section(".modinfo")
	if sec == nil {
		return nil, ErrNoModInfo
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("read .modinfo: %w", err)
	}
	return parseModInfo(data), nil
}

// RequirementsFromImage derives load requirements from the module image
// at path: the base [LoadRequirements] plus the kernel release recorded
// in its vermagic. Returned requirements are directly consumable by [Check].
func RequirementsFromImage(path string) (FeatureGroup, error) {
	mi, err := ReadModInfo(path)
	if err != nil {
		return nil, err
	}
	reqs := FeatureGroup{LoadRequirements}
	if release := mi.Release(); release != "" {
		reqs = append(reqs, RequireKernelRelease(release))
	}
	return reqs, nil
}

// NameFromPath returns the module name for an image file name:
// compression and .ko suffixes are stripped and dashes become underscores.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".xz", ".zst"} {
		base = strings.TrimSuffix(base, ext)
	}
	return NormalizeName(strings.TrimSuffix(base, ".ko"))
}

// NormalizeName maps dashes to underscores, matching how the kernel
// records module names.
func NormalizeName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// parseModInfo decodes the NUL separated key=value records of a .modinfo section.
func parseModInfo(data []byte) *ModInfo {
	mi := &ModInfo{}
	params := map[string]*ParamInfo{}
	param := func(name string) *ParamInfo {
		p, ok := params[name]
		if !ok {
			p = &ParamInfo{Name: name}
			params[name] = p
		}
		return p
	}

	for _, rec := range bytes.Split(data, []byte{0}) {
		key, value, ok := strings.Cut(string(rec), "=")
		if !ok {
			continue
		}
		switch key {
		case "name":
			mi.Name = value
		case "version":
			mi.Version = value
		case "license":
			mi.License = value
		case "description":
			mi.Description = value
		case "vermagic":
			mi.Vermagic = value
		case "depends":
			for _, dep := range strings.Split(value, ",") {
				if dep != "" {
					mi.Depends = append(mi.Depends, dep)
				}
			}
		case "parm":
			name, desc, _ := strings.Cut(value, ":")
			param(name).Description = desc
		case "parmtype":
			name, typ, _ := strings.Cut(value, ":")
			param(name).Type = typ
		}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		mi.Params = append(mi.Params, *params[name])
	}
	return mi
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompressImage returns r itself for plain images, or an in-memory
// reader over the decompressed content.
func decompressImage(r io.ReaderAt) (io.ReaderAt, error) {
	magic := make([]byte, 6)
	n, err := r.ReadAt(magic, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	magic = magic[:n]

	src := io.NewSectionReader(r, 0, math.MaxInt64)
	var dec io.Reader
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		dec = zr
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(src, xz.DefaultDictMax)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		dec = xr
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		dec = zr
	default:
		return r, nil
	}

	data, err := io.ReadAll(io.LimitReader(dec, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress image: %w", err)
	}
	if int64(len(data)) > MaxImageSize {
		return nil, fmt.Errorf("decompress image: %w (limit %d bytes)", ErrImageTooLarge, MaxImageSize)
	}
	return bytes.NewReader(data), nil
}
