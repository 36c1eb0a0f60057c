//go:build !linux

package likemod

// Inspect reports the state of the resident module called name.
// On non-Linux platforms, it always returns [ErrUnsupportedPlatform].
func Inspect(_ string) (*ModuleInfo, error) {
	return nil, ErrUnsupportedPlatform
}
