//go:build linux

package likemod

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// UnloadTask removes a module that may still be in use.
//
// Each attempt is one non-blocking delete_module(2) call. While the kernel
// answers EWOULDBLOCK the task waits for its ticker before trying again, so
// attempts are never closer together than one tick. Any other error ends the
// task.
//
// The task holds no kernel state between attempts: a driver may stop polling
// at any point and only has to Close it. Poll and Run must not be called
// concurrently; State, Attempts and Close may be called from any goroutine.
type UnloadTask struct {
	name   string
	flags  UnloadFlags
	ticker Ticker
	sys    sysCaller
	logger *slog.Logger

	state    atomic.Int32
	attempts atomic.Int64
	closed   atomic.Bool
	err      error
}

func (u Unloader) newUnloadTask(name string, ticker Ticker) *UnloadTask {
	t := &UnloadTask{
		name:   name,
		flags:  unloadFlags(u.force, true),
		ticker: ticker,
		sys:    syscalls,
		logger: u.log().With("module", name),
	}
	t.state.Store(int32(TaskCreated))
	return t
}

// Name returns the module the task removes.
func (t *UnloadTask) Name() string {
	return t.name
}

// Flags returns the delete_module(2) flags used by every attempt.
func (t *UnloadTask) Flags() UnloadFlags {
	return t.flags
}

// State returns the current task state.
func (t *UnloadTask) State() TaskState {
	return TaskState(t.state.Load())
}

// Attempts returns the number of delete_module(2) calls issued so far.
func (t *UnloadTask) Attempts() int {
	return int(t.attempts.Load())
}

// Poll advances the task by at most one attempt.
//
// In TaskCreated the attempt is made immediately; in TaskWaiting Poll first
// waits for the next tick. The returned state is TaskWaiting while the
// module is busy. Terminal states are sticky: polling again returns the same
// outcome without entering the kernel.
//
// If ctx is done before the attempt, Poll returns the current state with
// ctx.Err() and makes no syscall.
func (t *UnloadTask) Poll(ctx context.Context) (TaskState, error) {
	state := t.State()
	switch state {
	case TaskSucceeded:
		return state, nil
	case TaskFailed:
		return state, t.err
	}
	if t.closed.Load() {
		return state, ErrTaskClosed
	}

	if state == TaskWaiting {
		if err := t.ticker.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return state, ctxErr
			}
			if t.closed.Load() {
				return state, ErrTaskClosed
			}
			return t.fail(newSysError(OpTimer, err))
		}
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}
	if t.closed.Load() {
		return state, ErrTaskClosed
	}

	return t.attempt()
}

func (t *UnloadTask) attempt() (TaskState, error) {
	n := t.attempts.Add(1)
	err := t.sys.deleteModule(t.name, t.flags)
	switch {
	case err == nil:
		t.logger.Debug("module unloaded", "attempts", n)
		t.setState(TaskSucceeded)
		return TaskSucceeded, nil
	case IsBusy(err):
		t.logger.Debug("module busy", "attempt", n)
		t.setState(TaskWaiting)
		return TaskWaiting, nil
	default:
		return t.fail(newSysError(OpUnload, err))
	}
}

func (t *UnloadTask) fail(err error) (TaskState, error) {
	t.err = err
	t.logger.Debug("unload task failed", "attempts", t.Attempts(), "error", err)
	t.setState(TaskFailed)
	return TaskFailed, err
}

func (t *UnloadTask) setState(s TaskState) {
	t.state.Store(int32(s))
}

// Run polls the task until it succeeds, fails or ctx is done, then closes it.
//
// Compose with context.WithTimeout to bound the total wait. When ctx ends
// first, Run returns ctx.Err() and no attempt is left in flight.
func (t *UnloadTask) Run(ctx context.Context) error {
	defer t.Close()

	for {
		state, err := t.Poll(ctx)
		if state.Done() || err != nil {
			return err
		}
	}
}

// Start runs the task in a new goroutine and delivers the result of
// [UnloadTask.Run] on the returned channel.
func (t *UnloadTask) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- t.Run(ctx)
	}()
	return done
}

// Close releases the ticker. It is safe to call more than once, and while
// [UnloadTask.Start] is running: the pending wait ends and Run returns
// [ErrTaskClosed] without another attempt.
func (t *UnloadTask) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.ticker.Stop()
}
