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
)

func TestSubfoldersInRoot(t *testing.T) {
	assert.Equal(t, []string{"/"}, SubfoldersIn("/"))
}

func TestSubfoldersInAbsolutePath(t *testing.T) {
	assert.Equal(t, []string{"/this", "/this/is", "/this/is/a", "/this/is/a/path"}, SubfoldersIn("/this/is/a/path"))
}

func TestSubfoldersInRelativePath(t *testing.T) {
	assert.Equal(t, []string{"this", "this/is", "this/is/a", "this/is/a/path"}, SubfoldersIn("this/is/a/path"))
}

func TestBucketAndObjectSplitsLeadingSegment(t *testing.T) {
	bucket, object, err := bucketAndObject("/my-bucket/some/deep/key")
	assert.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "some/deep/key", object)
}

func TestBucketAndObjectTrimsTrailingSlashFromPrefix(t *testing.T) {
	bucket, object, err := bucketAndObject("/my-bucket/prefix/")
	assert.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "prefix", object)
}

func TestBucketAndObjectBucketOnly(t *testing.T) {
	bucket, object, err := bucketAndObject("/my-bucket")
	assert.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "", object)
}

func TestBucketAndObjectRejectsRootPath(t *testing.T) {
	_, _, err := bucketAndObject("/")
	assert.Error(t, err)
}

func TestLastPathSegmentOfDeepKey(t *testing.T) {
	assert.Equal(t, "key.txt", lastPathSegment("some/deep/key.txt"))
	assert.Equal(t, "folder", lastPathSegment("some/deep/folder/"))
}
