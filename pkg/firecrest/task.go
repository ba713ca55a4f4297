package firecrest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/fcapi"
)

// Task status codes reported by the /tasks microservice. The staging codes
// are monotonic within each direction: a poll never observes a regression to
// an earlier code for the same task.
const (
	// Generic long-running task codes (scheduler operations).
	StatusQueued    = 100
	StatusProgress  = 101
	StatusCompleted = 200
	StatusTaskError = 400

	// External upload: local file -> staging area -> cluster filesystem.
	StatusUploadWaiting   = 110 // waiting for the form URL from object storage
	StatusUploadFormReady = 111 // form URL received, client may push bytes
	StatusUploadConfirmed = 112 // object storage confirmed the upload
	StatusUploadIngesting = 113 // server started pulling from object storage
	StatusUploadDone      = 114
	StatusUploadError     = 115

	// External download: cluster filesystem -> staging area -> local file.
	StatusDownloadStarted = 116
	StatusDownloadDone    = 117
	StatusDownloadError   = 118
)

// Task is a snapshot of a server-side long-running task. It is created by an
// initiating request and mutated only by polling responses.
type Task struct {
	ID           string
	Status       string // raw status string as reported
	Code         int    // parsed status, -1 when Status is not numeric
	Description  string
	Service      string
	User         string
	LastModified string
	Data         json.RawMessage
}

// stagingProfile captures the terminal codes of one transfer direction. Any
// code at or above the success code that is not the failure code counts as
// success; the failure code is the sole failure terminal.
type stagingProfile struct {
	success int
	failure int
	first   int // first code specific to this direction
	link    int // code at which the object storage payload is published
}

var (
	uploadProfile = stagingProfile{
		success: StatusUploadDone,
		failure: StatusUploadError,
		first:   StatusUploadWaiting,
		link:    StatusUploadFormReady,
	}
	downloadProfile = stagingProfile{
		success: StatusDownloadDone,
		failure: StatusDownloadError,
		first:   StatusDownloadStarted,
		link:    StatusDownloadDone,
	}
)

func (p stagingProfile) terminal(code int) bool { return code >= p.success }

func (p stagingProfile) failed(code int) bool { return code == p.failure }

// known reports whether the code belongs to this direction's table. The task
// service reports 100/101 while the initiating request is still queued.
func (p stagingProfile) known(code int) bool {
	if code == StatusQueued || code == StatusProgress {
		return true
	}
	return code >= p.first && code <= p.failure
}

// UploadTerminal reports whether an external upload task has reached a
// terminal code (success 114 or failure 115).
func UploadTerminal(code int) bool { return uploadProfile.terminal(code) }

// DownloadTerminal reports whether an external download task has reached a
// terminal code (success 117 or failure 118).
func DownloadTerminal(code int) bool { return downloadProfile.terminal(code) }

// SchedulerTerminal reports whether a scheduler task has reached a terminal
// code (success 200, failure 400).
func SchedulerTerminal(code int) bool { return code >= StatusCompleted }

// NoTimeout disables the poll deadline of WaitTask.
const NoTimeout time.Duration = -1

func parseTask(raw json.RawMessage) (*Task, error) {
	var doc struct {
		HashID      string          `json:"hash_id"`
		TaskID      string          `json:"task_id"`
		Status      string          `json:"status"`
		Description string          `json:"description"`
		Data        json.RawMessage `json:"data"`
		Service     string          `json:"service"`
		User        string          `json:"user"`
		LastModify  string          `json:"last_modify"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &RequestError{Op: "decode task document", Err: err}
	}
	id := doc.HashID
	if id == "" {
		id = doc.TaskID
	}
	code := -1
	if n, err := strconv.Atoi(doc.Status); err == nil {
		code = n
	}
	return &Task{
		ID:           id,
		Status:       doc.Status,
		Code:         code,
		Description:  doc.Description,
		Service:      doc.Service,
		User:         doc.User,
		LastModified: doc.LastModify,
		Data:         doc.Data,
	}, nil
}

// Task fetches the current snapshot of one task.
func (c *Client) Task(ctx context.Context, taskID string) (*Task, error) {
	body, err := c.get(ctx, "/tasks/"+taskID, nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := fcapi.TaskDocument(body)
	if err != nil {
		return nil, &RequestError{Op: "GET /tasks/" + taskID, Err: err}
	}
	return parseTask(raw)
}

// Tasks fetches a snapshot of every task owned by the caller.
func (c *Client) Tasks(ctx context.Context) (map[string]*Task, error) {
	body, err := c.get(ctx, "/tasks/", nil, nil)
	if err != nil {
		return nil, err
	}
	raws, err := fcapi.TaskDocuments(body)
	if err != nil {
		return nil, &RequestError{Op: "GET /tasks", Err: err}
	}
	tasks := make(map[string]*Task, len(raws))
	for id, raw := range raws {
		task, err := parseTask(raw)
		if err != nil {
			return nil, err
		}
		tasks[id] = task
	}
	return tasks, nil
}

// WaitTask polls a task until terminal reports true for its status code.
// Every status request passes through the "tasks" rate-limit category, and
// the limiter interval itself paces the loop; no additional sleep is layered
// on top. When timeout is non-negative and the elapsed time since the first
// status request exceeds it, WaitTask fails with a TimeoutError carrying the
// last observed snapshot. A transport failure surfaces immediately as a
// RequestError and is not retried here. A status code outside the known
// tables surfaces as an UnknownStatusError alongside the snapshot.
func (c *Client) WaitTask(ctx context.Context, taskID string, terminal func(code int) bool, timeout time.Duration) (*Task, error) {
	start := time.Now()
	for {
		task, err := c.Task(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Code < 0 {
			return task, &UnknownStatusError{Task: task}
		}
		if terminal(task.Code) {
			log.Debugf("task %s reached terminal status %s", taskID, task.Status)
			return task, nil
		}
		if timeout >= 0 && time.Since(start) >= timeout {
			return task, &TimeoutError{Task: task}
		}
		log.Debugf("task %s has status %s, polling again", taskID, task.Status)
	}
}
