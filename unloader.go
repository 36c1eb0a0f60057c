package likemod

import "log/slog"

// Unloader configures module removal.
//
// Unloader carries no per-call state and can be reused for any number of
// unloads, including concurrent ones on different modules.
type Unloader struct {
	force  bool
	logger *slog.Logger
}

// NewUnloader returns an Unloader that does not force removal.
func NewUnloader() Unloader {
	return Unloader{}
}

// Forced sets whether removal ignores the module reference count.
//
// A forced unload taints the kernel and can leave the host unstable or
// lose data. It requires CONFIG_MODULE_FORCE_UNLOAD.
func (u Unloader) Forced(force bool) Unloader {
	u.force = force
	return u
}

// WithLogger sets the logger used for debug records.
func (u Unloader) WithLogger(logger *slog.Logger) Unloader {
	u.logger = logger
	return u
}

func (u Unloader) log() *slog.Logger {
	return loggerOrDiscard(u.logger)
}
