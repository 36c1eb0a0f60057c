//go:build linux

package likemod

import (
	"context"
	"os"
	"sync"
	"testing"
)

type finitCall struct {
	fd     int
	params string
	flags  LoadFlags
}

type deleteCall struct {
	name  string
	flags UnloadFlags
}

// fakeSys records module syscalls. deleteModule returns deleteErrs in
// order and nil once they are exhausted.
type fakeSys struct {
	mu          sync.Mutex
	finitErr    error
	deleteErrs  []error
	finitCalls  []finitCall
	deleteCalls []deleteCall
}

func (f *fakeSys) finitModule(fd int, params string, flags LoadFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finitCalls = append(f.finitCalls, finitCall{fd: fd, params: params, flags: flags})
	return f.finitErr
}

func (f *fakeSys) deleteModule(name string, flags UnloadFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, deleteCall{name: name, flags: flags})
	if len(f.deleteErrs) == 0 {
		return nil
	}
	err := f.deleteErrs[0]
	f.deleteErrs = f.deleteErrs[1:]
	return err
}

func (f *fakeSys) deletes() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deleteCall(nil), f.deleteCalls...)
}

// useFakeSys installs f as the package syscall backend for the test.
func useFakeSys(t *testing.T, f *fakeSys) {
	t.Helper()
	prev := syscalls
	syscalls = f
	t.Cleanup(func() { syscalls = prev })
}

// fakeTicker ticks immediately unless block is set, in which case Wait
// only returns once ctx is done or the ticker is stopped.
type fakeTicker struct {
	mu      sync.Mutex
	block   bool
	err     error
	waits   int
	stopped int
	stop    chan struct{}
}

func (f *fakeTicker) stopCh() chan struct{} {
	if f.stop == nil {
		f.stop = make(chan struct{})
	}
	return f.stop
}

func (f *fakeTicker) Wait(ctx context.Context) error {
	f.mu.Lock()
	f.waits++
	block, err, stop := f.block, f.err, f.stopCh()
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if block {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return os.ErrClosed
		}
	}
	return err
}

func (f *fakeTicker) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped == 0 {
		close(f.stopCh())
	}
	f.stopped++
	return nil
}

func (f *fakeTicker) counts() (waits, stopped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits, f.stopped
}
