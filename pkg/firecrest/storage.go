package firecrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/fcapi"
	"github.com/firecrest-hpc/firecrest_sdk_go/internal/httpx"
)

// externalTransfer tracks one staged transfer through its task's status
// codes. It is embedded by ExternalUpload and ExternalDownload and owned by
// the caller that created it; it is not meant for concurrent use.
type externalTransfer struct {
	client  *Client
	taskID  string
	machine string
	profile stagingProfile
	last    *Task
	staging json.RawMessage // object storage payload: form at 111, link at 117
}

// TaskID returns the FirecREST task tracking this transfer.
func (t *externalTransfer) TaskID() string { return t.taskID }

// LastTask returns the most recently observed task snapshot, or nil before
// the first poll.
func (t *externalTransfer) LastTask() *Task { return t.last }

func (t *externalTransfer) initiated() bool { return t.client != nil && t.taskID != "" }

// update issues exactly one rate-limited status request and records the
// snapshot. Reading status never advances server-side state.
func (t *externalTransfer) update(ctx context.Context) (*Task, error) {
	if !t.initiated() {
		return nil, fmt.Errorf("%w: transfer not initiated", ErrInvalidState)
	}
	task, err := t.client.Task(ctx, t.taskID)
	if err != nil {
		return nil, err
	}
	t.last = task
	t.capture(task)
	return task, nil
}

// capture stores the object storage payload the first time it appears: the
// upload form at 111, the download link at 117.
func (t *externalTransfer) capture(task *Task) {
	if t.staging != nil {
		return
	}
	switch task.Code {
	case StatusUploadFormReady:
		var data struct {
			Msg json.RawMessage `json:"msg"`
		}
		if err := json.Unmarshal(task.Data, &data); err == nil && data.Msg != nil {
			t.staging = data.Msg
		}
	case StatusDownloadDone:
		t.staging = task.Data
	}
}

// Status returns the transfer's current raw status code. Each access
// consumes one rate-limited request; repeated access at a terminal code
// keeps returning that code. Codes outside the transfer's table are returned
// alongside an UnknownStatusError so the caller can inspect them.
func (t *externalTransfer) Status(ctx context.Context) (int, error) {
	task, err := t.update(ctx)
	if err != nil {
		return 0, err
	}
	if task.Code < 0 || !t.profile.known(task.Code) {
		return task.Code, &UnknownStatusError{Task: task}
	}
	return task.Code, nil
}

// InProgress reports whether the transfer has not yet reached a terminal
// code.
func (t *externalTransfer) InProgress(ctx context.Context) (bool, error) {
	code, err := t.Status(ctx)
	if err != nil {
		return false, err
	}
	return !t.profile.terminal(code), nil
}

// Data returns the task payload from a fresh status request.
func (t *externalTransfer) Data(ctx context.Context) (json.RawMessage, error) {
	task, err := t.update(ctx)
	if err != nil {
		return nil, err
	}
	return task.Data, nil
}

// ObjectStorageData blocks until the object storage payload for the transfer
// is available, polling at the rate limiter's pace. It fails with a
// TransferError when the task reaches its failure code first.
func (t *externalTransfer) ObjectStorageData(ctx context.Context) (json.RawMessage, error) {
	for {
		if t.staging != nil {
			return t.staging, nil
		}
		task, err := t.update(ctx)
		if err != nil {
			return nil, err
		}
		if t.staging != nil {
			return t.staging, nil
		}
		if t.profile.failed(task.Code) {
			return nil, &TransferError{Task: task}
		}
		if task.Code > t.profile.link {
			return nil, fmt.Errorf("%w: staging link no longer available (status %s)", ErrInvalidState, task.Status)
		}
	}
}

// waitTerminal polls the transfer's task until it reaches a terminal code
// for its direction, pacing the loop with the rate limiter alone. A code
// outside the direction's table surfaces as an UnknownStatusError and is
// never classified as terminal.
func (t *externalTransfer) waitTerminal(ctx context.Context, timeout time.Duration) (*Task, error) {
	start := time.Now()
	for {
		task, err := t.update(ctx)
		if err != nil {
			return nil, err
		}
		if task.Code < 0 || !t.profile.known(task.Code) {
			return task, &UnknownStatusError{Task: task}
		}
		if t.profile.terminal(task.Code) {
			return task, nil
		}
		if timeout >= 0 && time.Since(start) >= timeout {
			return task, &TimeoutError{Task: task}
		}
	}
}

// InvalidateObjectStorageLink revokes the temporary staging URL. Best
// effort: a failure is reported but does not change the transfer's already
// observed state.
func (t *externalTransfer) InvalidateObjectStorageLink(ctx context.Context) error {
	if !t.initiated() {
		return fmt.Errorf("%w: transfer not initiated", ErrInvalidState)
	}
	_, err := t.client.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/storage/xfer-external/invalidate",
		Header: http.Header{"X-Task-Id": []string{t.taskID}},
	})
	return err
}

// ExternalUpload is a staged upload: the server hands out a single-use form
// URL on its object storage, the client pushes the local file there, and the
// server ingests it into the machine's filesystem.
type ExternalUpload struct {
	externalTransfer
	sourcePath string
	targetPath string
	done       bool
}

// uploadForm is the decoded 111 payload: where and how to push the bytes.
type uploadForm struct {
	url    string
	method string
	fields map[string]string
}

func parseUploadForm(raw json.RawMessage) (*uploadForm, error) {
	var msg struct {
		Command    string `json:"command"`
		Parameters struct {
			Method string         `json:"method"`
			URL    string         `json:"url"`
			Data   map[string]any `json:"data"`
		} `json:"parameters"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	if msg.Parameters.URL == "" {
		return nil, errors.New("staging form carries no URL")
	}
	fields := make(map[string]string, len(msg.Parameters.Data))
	for k, v := range msg.Parameters.Data {
		fields[k] = fmt.Sprint(v)
	}
	method := msg.Parameters.Method
	if method == "" {
		method = http.MethodPost
	}
	return &uploadForm{url: msg.Parameters.URL, method: method, fields: fields}, nil
}

// FinishUpload pushes the local file to the staging area, then polls the
// task to its terminal code. The staging form URL is single-use server-side,
// so a second call is rejected with ErrInvalidState. A failure to read the
// local file surfaces as a LocalIOError before any byte leaves the machine;
// a server-reported 115 surfaces as a TransferError.
func (u *ExternalUpload) FinishUpload(ctx context.Context) error {
	if !u.initiated() {
		return fmt.Errorf("%w: upload not initiated", ErrInvalidState)
	}
	if u.done {
		return fmt.Errorf("%w: staging link already consumed", ErrInvalidState)
	}

	raw, err := u.ObjectStorageData(ctx)
	if err != nil {
		return err
	}
	form, err := parseUploadForm(raw)
	if err != nil {
		return &RequestError{Op: "parse staging form", Err: err}
	}

	file, err := u.client.fs.Open(u.sourcePath)
	if err != nil {
		return &LocalIOError{Path: u.sourcePath, Err: err}
	}
	body, contentType, err := httpx.MultipartBody(form.fields, "file", filepath.Base(u.sourcePath), file)
	file.Close()
	if err != nil {
		return &LocalIOError{Path: u.sourcePath, Err: err}
	}

	log.Infof("pushing %s to the staging area", u.sourcePath)
	resp, err := u.client.api.Do(ctx, &httpx.Request{
		Method:       form.method,
		URL:          form.url,
		Header:       http.Header{"Content-Type": []string{contentType}},
		Body:         body,
		DisableRetry: true,
	})
	if err != nil {
		return &RequestError{Op: "push to staging area", Err: err}
	}
	if _, err := httpx.ReadAllAndClose(resp.Body); err != nil {
		return &RequestError{Op: "push to staging area", Err: err}
	}
	u.done = true

	task, err := u.waitTerminal(ctx, NoTimeout)
	if err != nil {
		return err
	}
	if uploadProfile.failed(task.Code) {
		return &TransferError{Task: task}
	}
	return nil
}

// ExternalDownload is a staged download: the server moves the remote file to
// its object storage and hands out a temporary link the client fetches.
type ExternalDownload struct {
	externalTransfer
	sourcePath string
}

// ObjectStorageLink returns the direct download URL for the staged file,
// blocking until the server publishes it. Older deployments report the link
// as a bare string, newer ones as an object with a url field.
func (d *ExternalDownload) ObjectStorageLink(ctx context.Context) (string, error) {
	raw, err := d.ObjectStorageData(ctx)
	if err != nil {
		return "", err
	}
	return parseStorageLink(raw)
}

func parseStorageLink(raw json.RawMessage) (string, error) {
	var link string
	if err := json.Unmarshal(raw, &link); err == nil && link != "" {
		return link, nil
	}
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.URL == "" {
		return "", errors.New("staging payload carries no download URL")
	}
	return payload.URL, nil
}

// FinishDownload polls the task to its terminal code, then fetches the
// staged file into localPath through a uniquely named temporary file that is
// renamed on success. Calling it again re-fetches the file; the staging link
// stays valid until invalidated or expired.
func (d *ExternalDownload) FinishDownload(ctx context.Context, localPath string) error {
	if !d.initiated() {
		return fmt.Errorf("%w: download not initiated", ErrInvalidState)
	}

	task, err := d.waitTerminal(ctx, NoTimeout)
	if err != nil {
		return err
	}
	if downloadProfile.failed(task.Code) {
		return &TransferError{Task: task}
	}

	link, err := parseStorageLink(d.staging)
	if err != nil {
		return &RequestError{Op: "resolve staging link", Err: err}
	}

	log.Infof("fetching staged file into %s", localPath)
	resp, err := d.client.api.Do(ctx, &httpx.Request{
		Method:       http.MethodGet,
		URL:          link,
		DisableRetry: true,
	})
	if err != nil {
		return &RequestError{Op: "fetch from staging area", Err: err}
	}
	defer resp.Body.Close()

	tmp := localPath + "." + uuid.NewString() + ".part"
	out, err := d.client.fs.Create(tmp)
	if err != nil {
		return &LocalIOError{Path: localPath, Err: err}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = d.client.fs.Remove(tmp)
		return &LocalIOError{Path: localPath, Err: err}
	}
	if err := out.Close(); err != nil {
		_ = d.client.fs.Remove(tmp)
		return &LocalIOError{Path: localPath, Err: err}
	}
	if err := d.client.fs.Rename(tmp, localPath); err != nil {
		_ = d.client.fs.Remove(tmp)
		return &LocalIOError{Path: localPath, Err: err}
	}
	return nil
}

// ExternalUpload starts a staged upload of a local file to the machine's
// filesystem and returns the transfer object for manual stepping. Use
// UploadAndWait for the blocking composition.
func (c *Client) ExternalUpload(ctx context.Context, machine, sourcePath, targetPath string) (*ExternalUpload, error) {
	body, err := c.postForm(ctx, "/storage/xfer-external/upload", machineHeader(machine), url.Values{
		"sourcePath": {sourcePath},
		"targetPath": {targetPath},
	})
	if err != nil {
		return nil, err
	}
	taskID, err := fcapi.TaskID(body)
	if err != nil {
		return nil, &RequestError{Op: "start external upload", Err: err}
	}
	log.Infof("created external upload task %s", taskID)
	return &ExternalUpload{
		externalTransfer: externalTransfer{client: c, taskID: taskID, machine: machine, profile: uploadProfile},
		sourcePath:       sourcePath,
		targetPath:       targetPath,
	}, nil
}

// ExternalDownload starts a staged download of a remote file and returns the
// transfer object for manual stepping. Use DownloadAndWait for the blocking
// composition.
func (c *Client) ExternalDownload(ctx context.Context, machine, sourcePath string) (*ExternalDownload, error) {
	body, err := c.postForm(ctx, "/storage/xfer-external/download", machineHeader(machine), url.Values{
		"sourcePath": {sourcePath},
	})
	if err != nil {
		return nil, err
	}
	taskID, err := fcapi.TaskID(body)
	if err != nil {
		return nil, &RequestError{Op: "start external download", Err: err}
	}
	log.Infof("created external download task %s", taskID)
	return &ExternalDownload{
		externalTransfer: externalTransfer{client: c, taskID: taskID, machine: machine, profile: downloadProfile},
		sourcePath:       sourcePath,
	}, nil
}

// UploadAndWait stages an upload and blocks until the file has landed on the
// machine's filesystem.
func (c *Client) UploadAndWait(ctx context.Context, machine, sourcePath, targetPath string) error {
	upload, err := c.ExternalUpload(ctx, machine, sourcePath, targetPath)
	if err != nil {
		return err
	}
	return upload.FinishUpload(ctx)
}

// DownloadAndWait stages a download and blocks until the file has been
// written to localPath.
func (c *Client) DownloadAndWait(ctx context.Context, machine, sourcePath, localPath string) error {
	download, err := c.ExternalDownload(ctx, machine, sourcePath)
	if err != nil {
		return err
	}
	return download.FinishDownload(ctx, localPath)
}
