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

import "strings"

// SubfoldersIn returns every prefix-subfolder of path, in order, e.g.
// "/a/b/c" -> ["/a", "/a/b", "/a/b/c"], "a/b/c" -> ["a", "a/b", "a/b/c"],
// and "/" -> ["/"]. The FTP transput variant walks these to create remote
// directory trees, and the S3 variant uses them to compute the prefix
// offset for directory downloads.
func SubfoldersIn(path string) []string {
	rooted := strings.HasPrefix(path, "/")
	fragments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if rooted {
		fragments[0] = "/" + fragments[0]
	}

	subfolders := make([]string, 0, len(fragments))
	current := fragments[0]
	subfolders = append(subfolders, current)
	for _, fragment := range fragments[1:] {
		current += "/" + fragment
		subfolders = append(subfolders, current)
	}
	return subfolders
}
