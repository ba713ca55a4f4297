package firecrest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/firecrest-hpc/firecrest_sdk_go/pkg/firecrest"
)

func TestTaskSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/tasks/tsk-1", &taskScript{steps: []string{
		taskDoc("114", `"Transfer data to FileSystem ended"`),
	}})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	task, err := client.Task(context.Background(), "tsk-1")
	require.NoError(t, err)
	require.Equal(t, "tsk-1", task.ID)
	require.Equal(t, firecrest.StatusUploadDone, task.Code)
	require.Equal(t, "114", task.Status)
}

func TestTasksListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks":{
			"a":{"hash_id":"a","status":"200","data":null},
			"b":{"hash_id":"b","status":"116","data":null}
		}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	tasks, err := client.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, firecrest.StatusCompleted, tasks["a"].Code)
	require.Equal(t, firecrest.StatusDownloadStarted, tasks["b"].Code)
}

func TestWaitTaskPollsToTerminal(t *testing.T) {
	script := &taskScript{steps: []string{
		taskDoc("100", ""),
		taskDoc("101", ""),
		taskDoc("200", `{"jobid":7}`),
	}}
	mux := http.NewServeMux()
	mux.Handle("/tasks/tsk-1", script)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	task, err := client.WaitTask(context.Background(), "tsk-1", firecrest.SchedulerTerminal, firecrest.NoTimeout)
	require.NoError(t, err)
	require.Equal(t, firecrest.StatusCompleted, task.Code)
	require.Equal(t, 3, script.count())
}

func TestWaitTaskZeroTimeoutPollsOnce(t *testing.T) {
	script := &taskScript{steps: []string{taskDoc("110", "")}}
	mux := http.NewServeMux()
	mux.Handle("/tasks/tsk-1", script)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	task, err := client.WaitTask(context.Background(), "tsk-1", firecrest.UploadTerminal, 0)

	var timeoutErr *firecrest.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, firecrest.StatusUploadWaiting, timeoutErr.Task.Code)
	require.Equal(t, firecrest.StatusUploadWaiting, task.Code)
	require.Equal(t, 1, script.count())
}

func TestWaitTaskNonNumericStatus(t *testing.T) {
	script := &taskScript{steps: []string{taskDoc("unknown-error", "")}}
	mux := http.NewServeMux()
	mux.Handle("/tasks/tsk-1", script)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	_, err := client.WaitTask(context.Background(), "tsk-1", firecrest.SchedulerTerminal, firecrest.NoTimeout)

	var unknownErr *firecrest.UnknownStatusError
	require.ErrorAs(t, err, &unknownErr)
	require.Equal(t, "unknown-error", unknownErr.Task.Status)
	require.Equal(t, 1, script.count())
}

func TestTerminalTables(t *testing.T) {
	require.False(t, firecrest.UploadTerminal(firecrest.StatusUploadIngesting))
	require.True(t, firecrest.UploadTerminal(firecrest.StatusUploadDone))
	require.True(t, firecrest.UploadTerminal(firecrest.StatusUploadError))

	require.False(t, firecrest.DownloadTerminal(firecrest.StatusDownloadStarted))
	require.True(t, firecrest.DownloadTerminal(firecrest.StatusDownloadDone))
	require.True(t, firecrest.DownloadTerminal(firecrest.StatusDownloadError))

	require.False(t, firecrest.SchedulerTerminal(firecrest.StatusProgress))
	require.True(t, firecrest.SchedulerTerminal(firecrest.StatusCompleted))
	require.True(t, firecrest.SchedulerTerminal(firecrest.StatusTaskError))
}
