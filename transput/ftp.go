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
	"net/url"
	"os"
	"strings"

	"github.com/jlaffaye/ftp"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// ftpTransput moves files and directories over FTP. It owns its connection
// for the lifetime of one Transput (closing it on Close), the same
// connection-ownership contract the original filer used to avoid
// reconnecting once per recursive step of a directory transfer.
type ftpTransput struct {
	conn *ftp.ServerConn
}

func newFTPTransput(ctx context.Context, parsed *url.URL) (*ftpTransput, error) {
	conn, err := ftp.Dial(dialAddr(parsed.Host))
	if err != nil {
		return nil, &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("connecting to %q: %s", parsed.Host, err)}
	}
	if err := ftpLogin(conn); err != nil {
		conn.Quit()
		return nil, &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("logging in to %q: %s", parsed.Host, err)}
	}
	return &ftpTransput{conn: conn}, nil
}

// dialAddr appends the default FTP control port when the host has none.
func dialAddr(host string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return host + ":21"
}

// ftpLogin authenticates with TESK_FTP_USERNAME/TESK_FTP_PASSWORD when both
// are set, falling back to an anonymous login when the server rejects those
// credentials or neither is configured.
func ftpLogin(conn *ftp.ServerConn) error {
	user, hasUser := os.LookupEnv("TESK_FTP_USERNAME")
	password, hasPassword := os.LookupEnv("TESK_FTP_PASSWORD")
	if !hasUser || !hasPassword {
		return conn.Login("anonymous", "anonymous")
	}
	if err := conn.Login(user, password); err != nil {
		return conn.Login("anonymous", "anonymous")
	}
	return nil
}

func (f *ftpTransput) Close() error {
	return f.conn.Quit()
}

func (f *ftpTransput) Download(ctx context.Context, entry core.IOEntry, localPath string) error {
	remotePath, err := urlPath(entry.URL)
	if err != nil {
		return err
	}
	if entry.Type == core.TypeDirectory {
		return f.downloadDir(remotePath, localPath)
	}
	return f.downloadFile(remotePath, localPath)
}

func (f *ftpTransput) Upload(ctx context.Context, entry core.IOEntry, localPath string) error {
	remotePath, err := urlPath(entry.URL)
	if err != nil {
		return err
	}
	if entry.Type == core.TypeDirectory {
		return f.uploadDir(remotePath, localPath)
	}
	return f.uploadFile(remotePath, localPath)
}

func (f *ftpTransput) downloadFile(remotePath, localPath string) error {
	if err := ensureParentDir(localPath); err != nil {
		return err
	}
	resp, err := f.conn.Retr(remotePath)
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("RETR %q: %s", remotePath, err)}
	}
	defer resp.Close()
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.ReadFrom(resp); err != nil {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("downloading %q: %s", remotePath, err)}
	}
	return nil
}

// downloadDir mirrors the remote directory tree rooted at remotePath into
// localPath, recursing one level per call.
func (f *ftpTransput) downloadDir(remotePath, localPath string) error {
	entries, err := f.conn.List(remotePath)
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("listing %q: %s", remotePath, err)}
	}
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		childRemote := remotePath + "/" + entry.Name
		childLocal := localPath + "/" + entry.Name
		if entry.Type == ftp.EntryTypeFolder {
			if err := f.downloadDir(childRemote, childLocal); err != nil {
				return err
			}
			continue
		}
		if err := f.downloadFile(childRemote, childLocal); err != nil {
			return err
		}
	}
	return nil
}

func (f *ftpTransput) uploadFile(remotePath, localPath string) error {
	if err := ftpMakeDirs(f.conn, parentDir(remotePath)); err != nil {
		return err
	}
	isDir, err := ftpIsDirectory(f.conn, remotePath)
	if err != nil {
		return err
	}
	if isDir {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("%q already exists as a directory", remotePath)}
	}
	in, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := f.conn.Stor(remotePath, in); err != nil {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("STOR %q: %s", remotePath, err)}
	}
	return nil
}

func (f *ftpTransput) uploadDir(remotePath, localPath string) error {
	children, err := listLocalDir(localPath)
	if err != nil {
		return err
	}
	for _, child := range children {
		childLocal := localPath + "/" + child.Name
		childRemote := remotePath + "/" + child.Name
		if child.IsDir {
			if err := f.uploadDir(childRemote, childLocal); err != nil {
				return err
			}
			continue
		}
		if err := f.uploadFile(childRemote, childLocal); err != nil {
			return err
		}
	}
	return nil
}

// ftpIsDirectory changes into path and back, the only portable way to probe
// a remote FTP path's type without relying on LIST output.
func ftpIsDirectory(conn *ftp.ServerConn, path string) (bool, error) {
	original, err := conn.CurrentDir()
	if err != nil {
		return false, &core.ProtocolRejectError{Protocol: "ftp", Detail: err.Error()}
	}
	isDir := conn.ChangeDir(path) == nil
	if err := conn.ChangeDir(original); err != nil {
		return false, &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("restoring directory %q: %s", original, err)}
	}
	return isDir, nil
}

// ftpMakeDirs ensures every subfolder of path exists remotely, walking
// SubfoldersIn(path) and issuing MakeDir for each missing step, then
// restores the connection's working directory.
func ftpMakeDirs(conn *ftp.ServerConn, path string) error {
	original, err := conn.CurrentDir()
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: err.Error()}
	}
	if conn.ChangeDir(path) == nil {
		if err := conn.ChangeDir(original); err != nil {
			return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("restoring directory %q: %s", original, err)}
		}
		return nil
	}
	for _, subfolder := range SubfoldersIn(path) {
		if conn.ChangeDir(subfolder) == nil {
			continue
		}
		if err := conn.MakeDir(subfolder); err != nil {
			return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("creating directory %q: %s", subfolder, err)}
		}
	}
	if err := conn.ChangeDir(original); err != nil {
		return &core.ProtocolRejectError{Protocol: "ftp", Detail: fmt.Sprintf("restoring directory %q: %s", original, err)}
	}
	return nil
}
