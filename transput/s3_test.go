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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketAndObject(t *testing.T) {
	bucket, object, err := bucketAndObject("/bucket/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "a/b/c", object)
}

func TestBucketAndObjectNoKey(t *testing.T) {
	bucket, object, err := bucketAndObject("/bucket")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "", object)
}

func TestBucketAndObjectTrimsTrailingSlash(t *testing.T) {
	_, object, err := bucketAndObject("/bucket/dir/")
	require.NoError(t, err)
	assert.Equal(t, "dir", object)
}

func TestBucketAndObjectRejectsEmptyPath(t *testing.T) {
	_, _, err := bucketAndObject("/")
	require.Error(t, err)
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "c", lastPathSegment("a/b/c"))
	assert.Equal(t, "c", lastPathSegment("a/b/c/"))
	assert.Equal(t, "a", lastPathSegment("a"))
}

// These two tests exercise the prefix-offset math documented (and flagged
// as an open question for the single-segment case) in spec.md §9,
// independent of any network call.
func TestS3DownloadDirOffsetMultiSegmentKey(t *testing.T) {
	subfolders := SubfoldersIn("a/b/c")
	require.Len(t, subfolders, 3)
	offset := len(subfolders[len(subfolders)-2]) + 1
	assert.Equal(t, len("a/b")+1, offset)

	key := "a/b/c/file.txt"
	assert.Equal(t, "c/file.txt", key[offset:])
}

func TestS3DownloadDirOffsetSingleSegmentKeyIsZero(t *testing.T) {
	subfolders := SubfoldersIn("c")
	require.Len(t, subfolders, 1)
	offset := 0
	if len(subfolders) > 1 {
		offset = len(subfolders[len(subfolders)-2]) + 1
	}
	assert.Equal(t, 0, offset)

	key := "c/file.txt"
	assert.Equal(t, key, key[offset:])
}
