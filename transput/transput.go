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

// Package transput moves a single file or directory between the scratch
// volume and a remote URL, over whichever protocol the URL names. It is run
// out-of-process by cmd/transput, one process per Filer job.
package transput

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// Transput downloads or uploads one IOEntry, dispatching internally on
// whether the entry names a file or a directory. A Transput is scoped to a
// single remote endpoint: construct one with New, use it for exactly one
// Download or Upload call, then Close it.
type Transput interface {
	io.Closer
	Download(ctx context.Context, entry core.IOEntry, localPath string) error
	Upload(ctx context.Context, entry core.IOEntry, localPath string) error
}

// New constructs the Transput implementation matching entryURL's scheme.
func New(ctx context.Context, entryURL string) (Transput, error) {
	parsed, err := url.Parse(entryURL)
	if err != nil {
		return nil, &core.MalformedInputError{Reason: fmt.Sprintf("invalid url %q: %s", entryURL, err)}
	}
	switch parsed.Scheme {
	case "http", "https":
		return newHTTPTransput(), nil
	case "ftp":
		return newFTPTransput(ctx, parsed)
	case "s3":
		return newS3Transput(ctx, parsed)
	default:
		return nil, &core.MalformedInputError{Reason: fmt.Sprintf("could not determine protocol for url %q", entryURL)}
	}
}

// Dispatch moves a single IOEntry in the given direction. Inline content
// (inputs only) is written directly to disk without touching the network;
// otherwise a protocol-specific Transput is constructed, exercised once, and
// released.
func Dispatch(ctx context.Context, direction core.Direction, entry core.IOEntry, localPath string) error {
	if direction == core.DirectionDownload && entry.Content != nil {
		return writeContentFile(localPath, *entry.Content)
	}

	t, err := New(ctx, entry.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Error("closing transput", "url", entry.URL, "error", closeErr.Error())
		}
	}()

	slog.Debug("transput dispatch", "direction", direction, "type", entry.Type, "url", entry.URL, "local", localPath)
	switch direction {
	case core.DirectionDownload:
		return t.Download(ctx, entry, localPath)
	case core.DirectionUpload:
		return t.Upload(ctx, entry, localPath)
	default:
		return &core.MalformedInputError{Reason: fmt.Sprintf("unknown transput direction %q", direction)}
	}
}

// writeContentFile implements the inline-content shortcut: the entry's
// content string is written verbatim to localPath, with no remote endpoint
// involved at all.
func writeContentFile(localPath, content string) error {
	if err := ensureParentDir(localPath); err != nil {
		return err
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func ensureParentDir(path string) error {
	return os.MkdirAll(parentDir(path), 0o755)
}
