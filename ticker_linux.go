//go:build linux

package likemod

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// timerfdTicker is a periodic CLOCK_MONOTONIC timerfd(2).
//
// Expirations that pile up while nobody waits are collapsed into a single
// read, so a slow driver never sees a burst of ticks.
type timerfdTicker struct {
	f *os.File
}

func newTimerfdTicker(interval time.Duration) (*timerfdTicker, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, err
	}

	ts := unix.NsecToTimespec(interval.Nanoseconds())
	spec := unix.ItimerSpec{Interval: ts, Value: ts}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// The fd is non-blocking, so the runtime poller parks the goroutine
	// instead of a thread and read deadlines work.
	return &timerfdTicker{f: os.NewFile(uintptr(fd), "likemod-timerfd")}, nil
}

func (t *timerfdTicker) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.f.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.f.SetReadDeadline(time.Now())
	})
	defer stop()

	var buf [8]byte
	n, err := t.f.Read(buf[:])
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, os.ErrDeadlineExceeded) {
			return ctxErr
		}
		return err
	}
	if n != len(buf) {
		return unix.EIO
	}
	return nil
}

func (t *timerfdTicker) Stop() error {
	return t.f.Close()
}
