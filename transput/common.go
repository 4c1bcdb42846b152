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
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// urlPath returns the path component of a remote URL, stripped of its
// scheme and host, for the FTP variant, which addresses remote resources
// by path rather than by full URL.
func urlPath(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &core.MalformedInputError{Reason: fmt.Sprintf("invalid url %q: %s", rawURL, err)}
	}
	return parsed.Path, nil
}

// parentDir returns the directory component of path using forward-slash
// semantics, matching how the protocol variants build remote paths too.
func parentDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "" {
		return "."
	}
	return dir
}

// localEntry names a single child of a directory being recursed into,
// classified the way os.Stat would classify it.
type localEntry struct {
	Name  string
	IsDir bool
}

// listLocalDir lists the immediate children of a local directory for
// recursive directory upload.
func listLocalDir(path string) ([]localEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	result := make([]localEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, localEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return result, nil
}
