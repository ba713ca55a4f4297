package firecrest_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/firecrest-hpc/firecrest_sdk_go/pkg/firecrest"
)

func TestListFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/utilities/ls", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "daint", r.Header.Get("X-Machine-Name"))
		require.Equal(t, "/home/test", r.URL.Query().Get("targetPath"))
		require.Empty(t, r.URL.Query().Get("showhidden"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"description":"List of contents","output":[
			{"name":"data.csv","type":"-","permissions":"rw-r--r--","size":"1024","user":"test","group":"test","last_modified":"2026-08-30T10:00:00"},
			{"name":"run","type":"d","permissions":"rwxr-xr-x","size":"4096","user":"test","group":"test","last_modified":"2026-08-29T09:00:00"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	entries, err := client.ListFiles(context.Background(), "daint", "/home/test", false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "data.csv", entries[0].Name)
	require.Equal(t, "d", entries[1].Type)
}

func TestListFilesShowHidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/utilities/ls", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("showhidden"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	_, err := client.ListFiles(context.Background(), "daint", "/home/test", true)
	require.NoError(t, err)
}

func TestMkdir(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/utilities/mkdir", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "/scratch/run/out", r.PostForm.Get("targetPath"))
		require.Equal(t, "true", r.PostForm.Get("p"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"description":"Success to create directory"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	require.NoError(t, client.Mkdir(context.Background(), "daint", "/scratch/run/out", true))
}

func TestSimpleUpload(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/input.txt", []byte("hello cluster"), 0o644))

	mux := http.NewServeMux()
	mux.HandleFunc("/utilities/upload", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "daint", r.Header.Get("X-Machine-Name"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "/home/test", r.MultipartForm.Value["targetPath"][0])

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "input.txt", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "hello cluster", string(content))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"description":"File upload successful"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, fs)
	require.NoError(t, client.SimpleUpload(context.Background(), "daint", "/tmp/input.txt", "/home/test"))
}

func TestSimpleUploadMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected when the local file is missing")
	}))
	defer srv.Close()

	client := newTestClient(t, srv, afero.NewMemMapFs())
	err := client.SimpleUpload(context.Background(), "daint", "/tmp/missing.txt", "/home/test")

	var ioErr *firecrest.LocalIOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "/tmp/missing.txt", ioErr.Path)
}

func TestSimpleDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/utilities/download", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/home/test/data.csv", r.URL.Query().Get("sourcePath"))
		w.Write([]byte("a,b,c\n1,2,3\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	client := newTestClient(t, srv, fs)
	require.NoError(t, client.SimpleDownload(context.Background(), "daint", "/home/test/data.csv", "/tmp/data.csv"))

	content, err := afero.ReadFile(fs, "/tmp/data.csv")
	require.NoError(t, err)
	require.Equal(t, "a,b,c\n1,2,3\n", string(content))
}
