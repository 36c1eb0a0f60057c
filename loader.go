package likemod

import "log/slog"

// Loader configures a module load.
//
// Loader is a value type: every setter returns an updated copy and leaves
// the receiver untouched.
//
//	err := likemod.NewLoader().
//	    IgnoreVermagic(true).
//	    WithParams(likemod.Params{"debug": likemod.Int(1)}).
//	    LoadPath("/tmp/dummy.ko")
type Loader struct {
	ignoreModversion bool
	ignoreVermagic   bool
	params           Params
	logger           *slog.Logger
}

// NewLoader returns a Loader that keeps every kernel version check and
// passes no parameters.
func NewLoader() Loader {
	return Loader{}
}

// IgnoreModversion sets whether symbol version hashes are ignored.
func (l Loader) IgnoreModversion(ignored bool) Loader {
	l.ignoreModversion = ignored
	return l
}

// IgnoreVermagic sets whether the kernel version magic is ignored.
func (l Loader) IgnoreVermagic(ignored bool) Loader {
	l.ignoreVermagic = ignored
	return l
}

// WithParams sets the module parameters passed at load time.
func (l Loader) WithParams(params Params) Loader {
	l.params = params
	return l
}

// WithLogger sets the logger used for debug records.
func (l Loader) WithLogger(logger *slog.Logger) Loader {
	l.logger = logger
	return l
}

// Params returns the configured module parameters.
func (l Loader) Params() Params {
	return l.params
}

func (l Loader) log() *slog.Logger {
	return loggerOrDiscard(l.logger)
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
