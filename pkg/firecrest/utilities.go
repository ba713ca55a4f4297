package firecrest

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/fcapi"
	"github.com/firecrest-hpc/firecrest_sdk_go/internal/httpx"
)

// FileEntry describes one directory entry returned by ListFiles.
type FileEntry struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LinkTarget   string `json:"link_target"`
	User         string `json:"user"`
	Group        string `json:"group"`
	Permissions  string `json:"permissions"`
	LastModified string `json:"last_modified"`
	Size         string `json:"size"`
}

// ListFiles lists a directory on the machine's filesystem.
func (c *Client) ListFiles(ctx context.Context, machine, targetPath string, showHidden bool) ([]FileEntry, error) {
	query := url.Values{"targetPath": {targetPath}}
	if showHidden {
		query.Set("showhidden", "true")
	}
	body, err := c.get(ctx, "/utilities/ls", machineHeader(machine), query)
	if err != nil {
		return nil, err
	}
	var out []FileEntry
	if err := fcapi.DecodeOut(body, &out); err != nil {
		return nil, &RequestError{Op: "GET /utilities/ls", Err: err}
	}
	return out, nil
}

// Mkdir creates a directory on the machine's filesystem. With parents set,
// intermediate directories are created as needed.
func (c *Client) Mkdir(ctx context.Context, machine, targetPath string, parents bool) error {
	form := url.Values{"targetPath": {targetPath}}
	if parents {
		form.Set("p", "true")
	}
	_, err := c.postForm(ctx, "/utilities/mkdir", machineHeader(machine), form)
	return err
}

// SimpleUpload uploads a small file in a single blocking request. For large
// files use ExternalUpload, which stages the transfer through object storage.
func (c *Client) SimpleUpload(ctx context.Context, machine, sourcePath, targetDir string) error {
	file, err := c.fs.Open(sourcePath)
	if err != nil {
		return &LocalIOError{Path: sourcePath, Err: err}
	}
	defer file.Close()

	body, contentType, err := httpx.MultipartBody(
		map[string]string{"targetPath": targetDir},
		"file", filepath.Base(sourcePath), file,
	)
	if err != nil {
		return &LocalIOError{Path: sourcePath, Err: err}
	}
	header := machineHeader(machine)
	header.Set("Content-Type", contentType)
	_, err = c.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/utilities/upload",
		Header: header,
		Body:   body,
	})
	return err
}

// SimpleDownload fetches a small file in a single blocking request and writes
// it to localPath.
func (c *Client) SimpleDownload(ctx context.Context, machine, sourcePath, localPath string) error {
	body, err := c.get(ctx, "/utilities/download", machineHeader(machine), url.Values{
		"sourcePath": {sourcePath},
	})
	if err != nil {
		return err
	}
	if err := afero.WriteFile(c.fs, localPath, body, 0o644); err != nil {
		return &LocalIOError{Path: localPath, Err: err}
	}
	return nil
}
