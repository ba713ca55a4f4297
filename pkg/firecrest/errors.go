package firecrest

import (
	"errors"
	"fmt"
)

// ErrInvalidState reports API misuse on a staged transfer: finalizing before
// initiation, or re-finalizing an upload whose staging link was already
// consumed.
var ErrInvalidState = errors.New("firecrest: invalid transfer state")

// RequestError wraps a transport or HTTP-level failure on a single request.
// The underlying httpx.HTTPError (if any) is available through Unwrap.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("firecrest: %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// TimeoutError reports that a poll deadline elapsed before the task reached a
// terminal state. Task holds the last observed snapshot.
type TimeoutError struct {
	Task *Task
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("firecrest: poll timeout for task %s (last status %s)", e.Task.ID, e.Task.Status)
}

// TransferError reports that the server moved a staged transfer to its
// terminal failure code.
type TransferError struct {
	Task *Task
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("firecrest: transfer task %s failed with status %s: %s", e.Task.ID, e.Task.Status, e.Task.Description)
}

// LocalIOError reports a problem reading or writing a local file during a
// transfer.
type LocalIOError struct {
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("firecrest: local file %s: %v", e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error { return e.Err }

// UnknownStatusError reports a task status code outside the known tables. It
// is never classified as terminal; the snapshot is attached so the caller can
// inspect the raw code.
type UnknownStatusError struct {
	Task *Task
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("firecrest: task %s reported unknown status %q", e.Task.ID, e.Task.Status)
}
