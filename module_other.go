//go:build !linux

package likemod

import (
	"context"
	"os"
	"time"
)

// LoadFlags holds the finit_module(2) flags computed from a [Loader].
// On non-Linux platforms no flags exist.
type LoadFlags uint

// UnloadFlags holds the delete_module(2) flags computed from an [Unloader].
// On non-Linux platforms no flags exist.
type UnloadFlags int

func (l Loader) Flags() LoadFlags                { return 0 }
func (l Loader) LoadFile(_ *os.File) error       { return ErrUnsupportedPlatform }
func (l Loader) LoadPath(_ string) error         { return ErrUnsupportedPlatform }
func (u Unloader) Flags(_ bool) UnloadFlags      { return 0 }
func (u Unloader) Unload(_ string, _ bool) error { return ErrUnsupportedPlatform }

func (u Unloader) NewUnloadTask(_ string, _ time.Duration) (*UnloadTask, error) {
	return nil, ErrUnsupportedPlatform
}

func (u Unloader) NewUnloadTaskWithTicker(_ string, _ Ticker) (*UnloadTask, error) {
	return nil, ErrUnsupportedPlatform
}

func (u Unloader) UnloadAsync(_ context.Context, _ string, _ time.Duration) error {
	return ErrUnsupportedPlatform
}

// UnloadTask removes a module that may still be in use.
// It cannot be constructed on non-Linux platforms.
type UnloadTask struct{}

func (t *UnloadTask) Name() string                              { return "" }
func (t *UnloadTask) Flags() UnloadFlags                        { return 0 }
func (t *UnloadTask) State() TaskState                          { return TaskFailed }
func (t *UnloadTask) Attempts() int                             { return 0 }
func (t *UnloadTask) Poll(_ context.Context) (TaskState, error) { return TaskFailed, ErrUnsupportedPlatform }
func (t *UnloadTask) Run(_ context.Context) error               { return ErrUnsupportedPlatform }
func (t *UnloadTask) Close() error                              { return nil }

func (t *UnloadTask) Start(_ context.Context) <-chan error {
	done := make(chan error, 1)
	done <- ErrUnsupportedPlatform
	return done
}
