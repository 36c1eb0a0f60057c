//go:build linux

package likemod

import (
	"context"
	"fmt"
	"time"
)

// Flags returns the delete_module(2) flags for this configuration.
func (u Unloader) Flags(blocking bool) UnloadFlags {
	return unloadFlags(u.force, blocking)
}

// Unload removes the named module with a single delete_module(2) call.
//
// With blocking set, the call may put the thread in uninterruptible sleep
// until the module reference count drops to zero. Failures are returned as
// *[SysError] with Op [OpUnload].
func (u Unloader) Unload(name string, blocking bool) error {
	if name == "" {
		return ErrEmptyName
	}

	flags := u.Flags(blocking)
	u.log().Debug("delete_module", "module", name, "flags", flags)

	if err := syscalls.deleteModule(name, flags); err != nil {
		return newSysError(OpUnload, err)
	}
	return nil
}

// NewUnloadTask returns a task that retries removal of the named module
// every interval for as long as the module is busy.
//
// The task owns a timerfd; callers that do not drive it to completion with
// [UnloadTask.Run] must call [UnloadTask.Close].
func (u Unloader) NewUnloadTask(name string, interval time.Duration) (*UnloadTask, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	ticker, err := newTimerfdTicker(interval)
	if err != nil {
		return nil, newSysError(OpTimer, err)
	}
	return u.newUnloadTask(name, ticker), nil
}

// NewUnloadTaskWithTicker is like [Unloader.NewUnloadTask] but paces
// attempts with the given ticker. The task takes ownership of ticker.
func (u Unloader) NewUnloadTaskWithTicker(name string, ticker Ticker) (*UnloadTask, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if ticker == nil {
		return nil, fmt.Errorf("nil ticker")
	}
	return u.newUnloadTask(name, ticker), nil
}

// UnloadAsync removes the named module, retrying every interval while it is
// busy, until it is gone, a non-busy error occurs or ctx is done.
//
//	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
//	defer cancel()
//	err := likemod.NewUnloader().UnloadAsync(ctx, "dummy", 500*time.Millisecond)
func (u Unloader) UnloadAsync(ctx context.Context, name string, interval time.Duration) error {
	task, err := u.NewUnloadTask(name, interval)
	if err != nil {
		return err
	}
	return task.Run(ctx)
}
