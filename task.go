package likemod

import (
	"context"
	"errors"
	"fmt"
)

// ErrTaskClosed is returned when polling an [UnloadTask] after Close.
var ErrTaskClosed = errors.New("unload task closed")

// TaskState is the lifecycle state of an [UnloadTask].
type TaskState int32

const (
	// TaskCreated means no attempt has been made yet.
	TaskCreated TaskState = iota
	// TaskWaiting means the module was busy and the task waits for the next tick.
	TaskWaiting
	// TaskSucceeded means the module was removed (terminal state).
	TaskSucceeded
	// TaskFailed means an attempt or the ticker failed (terminal state).
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskWaiting:
		return "waiting"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskState(%d)", s)
	}
}

// Done reports whether s is terminal.
func (s TaskState) Done() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// Ticker paces the attempts of an [UnloadTask].
type Ticker interface {
	// Wait blocks until the next tick. It returns ctx.Err() once ctx is
	// done, and any other error when the ticker itself failed.
	Wait(ctx context.Context) error
	// Stop releases the ticker.
	Stop() error
}
