// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package transput

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// httpTransput moves files over plain HTTP(S). It has no notion of
// directory listing, so directory download is refused outright, matching
// the protocol's lack of a standard listing format.
type httpTransput struct {
	client *http.Client
}

func newHTTPTransput() *httpTransput {
	return &httpTransput{client: http.DefaultClient}
}

func (h *httpTransput) Close() error { return nil }

func (h *httpTransput) Download(ctx context.Context, entry core.IOEntry, localPath string) error {
	if entry.Type == core.TypeDirectory {
		return &core.UnsupportedOperationError{Operation: "http download_dir", Detail: "HTTP has no standard directory listing"}
	}
	return h.downloadFile(ctx, entry.URL, localPath)
}

func (h *httpTransput) Upload(ctx context.Context, entry core.IOEntry, localPath string) error {
	if entry.Type == core.TypeDirectory {
		return h.uploadDir(ctx, entry.URL, localPath)
	}
	return h.uploadFile(ctx, entry.URL, localPath)
}

func (h *httpTransput) downloadFile(ctx context.Context, remoteURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("building GET request for %q: %w", remoteURL, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "http", Detail: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &core.ProtocolRejectError{Protocol: "http", Detail: fmt.Sprintf("GET %s: status %d", remoteURL, resp.StatusCode)}
	}
	if err := ensureParentDir(localPath); err != nil {
		return err
	}
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func (h *httpTransput) uploadFile(ctx context.Context, remoteURL, localPath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer in.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, remoteURL, in)
	if err != nil {
		return fmt.Errorf("building PUT request for %q: %w", remoteURL, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "http", Detail: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &core.ProtocolRejectError{Protocol: "http", Detail: fmt.Sprintf("PUT %s: status %d", remoteURL, resp.StatusCode)}
	}
	return nil
}

// uploadDir recurses one directory level at a time, as the original filer
// does: each child gets its own request, and the first failure aborts the
// whole directory.
func (h *httpTransput) uploadDir(ctx context.Context, remoteURL, localPath string) error {
	children, err := listLocalDir(localPath)
	if err != nil {
		return err
	}
	for _, child := range children {
		childLocal := localPath + "/" + child.Name
		childURL := remoteURL + "/" + child.Name
		if child.IsDir {
			if err := h.uploadDir(ctx, childURL, childLocal); err != nil {
				return err
			}
			continue
		}
		if err := h.uploadFile(ctx, childURL, childLocal); err != nil {
			return err
		}
	}
	return nil
}
