package firecrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/fcapi"
	"github.com/firecrest-hpc/firecrest_sdk_go/internal/httpx"
)

// SubmitOptions selects the job script for Submit. Exactly one of Script,
// ScriptLocalPath and ScriptRemotePath must be set.
type SubmitOptions struct {
	// Script is the batch script content, submitted as a file upload.
	Script string
	// ScriptLocalPath is a path on the local filesystem whose content is
	// submitted as a file upload.
	ScriptLocalPath string
	// ScriptRemotePath is a path on the machine's filesystem.
	ScriptRemotePath string
	// Account charges the job to this project account.
	Account string
	// EnvVars are exported into the job environment.
	EnvVars map[string]string
}

// JobSubmission is the scheduler's response to a successful submission.
type JobSubmission struct {
	JobID     int    `json:"jobid"`
	Result    string `json:"result"`
	JobFile   string `json:"job_file"`
	JobStdout string `json:"job_file_out"`
	JobStderr string `json:"job_file_err"`
	// TaskID is the FirecREST task that tracked the submission.
	TaskID string `json:"-"`
}

// JobInfo describes one scheduler job as reported by Poll and PollActive.
type JobInfo struct {
	JobID     string `json:"jobid"`
	Name      string `json:"name"`
	User      string `json:"user"`
	State     string `json:"state"`
	Partition string `json:"partition"`
	Nodes     string `json:"nodes"`
	NodeList  string `json:"nodelist"`
	StartTime string `json:"start_time"`
	TimeUsed  string `json:"time"`
	TimeLeft  string `json:"time_left"`
}

// Submit sends a batch script to the machine's scheduler and blocks until the
// submission task completes, returning the scheduler's response.
func (c *Client) Submit(ctx context.Context, machine string, opts SubmitOptions) (*JobSubmission, error) {
	sources := 0
	for _, s := range []string{opts.Script, opts.ScriptLocalPath, opts.ScriptRemotePath} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("firecrest: exactly one of Script, ScriptLocalPath and ScriptRemotePath must be set")
	}

	var body []byte
	var err error
	switch {
	case opts.ScriptRemotePath != "":
		form := url.Values{"targetPath": {opts.ScriptRemotePath}}
		addSubmitFields(form, opts)
		body, err = c.postForm(ctx, "/compute/jobs/path", machineHeader(machine), form)
	case opts.ScriptLocalPath != "":
		file, ferr := c.fs.Open(opts.ScriptLocalPath)
		if ferr != nil {
			return nil, &LocalIOError{Path: opts.ScriptLocalPath, Err: ferr}
		}
		body, err = c.submitUpload(ctx, machine, filepath.Base(opts.ScriptLocalPath), file, opts)
		file.Close()
	default:
		body, err = c.submitUpload(ctx, machine, "script.batch", strings.NewReader(opts.Script), opts)
	}
	if err != nil {
		return nil, err
	}

	taskID, err := fcapi.TaskID(body)
	if err != nil {
		return nil, &RequestError{Op: "submit job", Err: err}
	}
	log.Infof("job submission task: %s", taskID)

	task, err := c.WaitTask(ctx, taskID, SchedulerTerminal, NoTimeout)
	if err != nil {
		return nil, err
	}
	if task.Code == StatusTaskError {
		return nil, &TransferError{Task: task}
	}

	var submission JobSubmission
	if err := decodeTaskPayload(task.Data, &submission); err != nil {
		return nil, &RequestError{Op: "decode submission result", Err: err}
	}
	submission.TaskID = taskID
	return &submission, nil
}

func (c *Client) submitUpload(ctx context.Context, machine, filename string, script io.Reader, opts SubmitOptions) ([]byte, error) {
	fields := map[string]string{}
	addSubmitMap(fields, opts)
	body, contentType, err := httpx.MultipartBody(fields, "file", filename, script)
	if err != nil {
		return nil, &LocalIOError{Path: filename, Err: err}
	}
	header := machineHeader(machine)
	header.Set("Content-Type", contentType)
	return c.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/compute/jobs/upload",
		Header: header,
		Body:   body,
	})
}

func addSubmitFields(form url.Values, opts SubmitOptions) {
	if opts.Account != "" {
		form.Set("account", opts.Account)
	}
	if len(opts.EnvVars) > 0 {
		if env, err := json.Marshal(opts.EnvVars); err == nil {
			form.Set("env", string(env))
		}
	}
}

func addSubmitMap(fields map[string]string, opts SubmitOptions) {
	if opts.Account != "" {
		fields["account"] = opts.Account
	}
	if len(opts.EnvVars) > 0 {
		if env, err := json.Marshal(opts.EnvVars); err == nil {
			fields["env"] = string(env)
		}
	}
}

// PollActive queries the scheduler queue for active jobs, blocking until the
// query task completes. With an empty jobs slice every job of the user is
// returned.
func (c *Client) PollActive(ctx context.Context, machine string, jobs []string) ([]JobInfo, error) {
	query := url.Values{}
	if len(jobs) > 0 {
		query.Set("jobs", strings.Join(jobs, ","))
	}
	body, err := c.get(ctx, "/compute/jobs", machineHeader(machine), query)
	if err != nil {
		return nil, err
	}
	return c.waitJobQuery(ctx, body, "poll active jobs")
}

// Poll queries the scheduler accounting database, blocking until the query
// task completes. Jobs no longer in the queue are included.
func (c *Client) Poll(ctx context.Context, machine string, jobs []string, startTime, endTime string) ([]JobInfo, error) {
	query := url.Values{}
	if len(jobs) > 0 {
		query.Set("jobs", strings.Join(jobs, ","))
	}
	if startTime != "" {
		query.Set("starttime", startTime)
	}
	if endTime != "" {
		query.Set("endtime", endTime)
	}
	body, err := c.get(ctx, "/compute/acct", machineHeader(machine), query)
	if err != nil {
		return nil, err
	}
	return c.waitJobQuery(ctx, body, "poll jobs")
}

// Cancel asks the scheduler to cancel a job and blocks until the cancellation
// task completes.
func (c *Client) Cancel(ctx context.Context, machine, jobID string) error {
	body, err := c.delete(ctx, "/compute/jobs/"+jobID, machineHeader(machine))
	if err != nil {
		return err
	}
	taskID, err := fcapi.TaskID(body)
	if err != nil {
		return &RequestError{Op: "cancel job", Err: err}
	}
	task, err := c.WaitTask(ctx, taskID, SchedulerTerminal, NoTimeout)
	if err != nil {
		return err
	}
	if task.Code == StatusTaskError {
		return &TransferError{Task: task}
	}
	return nil
}

func (c *Client) waitJobQuery(ctx context.Context, body []byte, op string) ([]JobInfo, error) {
	taskID, err := fcapi.TaskID(body)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	task, err := c.WaitTask(ctx, taskID, SchedulerTerminal, NoTimeout)
	if err != nil {
		return nil, err
	}
	if task.Code == StatusTaskError {
		return nil, &TransferError{Task: task}
	}

	// The scheduler reports jobs either as a list or keyed by position.
	var list []JobInfo
	if err := json.Unmarshal(task.Data, &list); err == nil {
		return list, nil
	}
	var keyed map[string]JobInfo
	if err := json.Unmarshal(task.Data, &keyed); err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	list = make([]JobInfo, 0, len(keyed))
	for _, job := range keyed {
		list = append(list, job)
	}
	return list, nil
}

// decodeTaskPayload decodes a task result that the server reports either as
// an object or as a single-element list.
func decodeTaskPayload(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return err
	}
	if len(list) == 0 {
		return errors.New("empty task result")
	}
	return json.Unmarshal(list[0], v)
}
