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

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTask = `{
  "executors": [
    {"metadata": {"name": "exec1", "labels": {"taskmaster-name": "task-123"}}, "spec": {}}
  ],
  "inputs": [
    {"path": "/data/in.txt", "type": "FILE", "url": "http://h/in.txt"}
  ],
  "outputs": [
    {"path": "/data/out", "type": "DIRECTORY", "url": "s3://host/bucket/out"}
  ],
  "volumes": ["/scratch"],
  "resources": {"disk_gb": 2}
}`

func TestParseTask(t *testing.T) {
	task, err := ParseTask([]byte(sampleTask))
	require.NoError(t, err)
	assert.Equal(t, "task-123", task.Name())
	assert.True(t, task.NeedsStaging())
	assert.Equal(t, 2, task.Resources.DiskGB)
}

func TestParseTaskRejectsNoExecutors(t *testing.T) {
	_, err := ParseTask([]byte(`{"executors": []}`))
	require.Error(t, err)
	var malformed *MalformedInputError
	assert.ErrorAs(t, err, &malformed)
}

func TestTaskNeedsStagingFalseWhenAllEmpty(t *testing.T) {
	task := Task{Executors: []Executor{{Metadata: ExecutorMetadata{Labels: map[string]string{TaskNameLabel: "t"}}}}}
	assert.False(t, task.NeedsStaging())
	assert.Empty(t, task.MountPaths())
}

func TestMountPathsPreservesDuplicatesAndOrder(t *testing.T) {
	task := Task{
		Volumes: []string{"/a", "/a"},
		Inputs: []IOEntry{
			{Path: "/a/in.txt", Type: TypeFile},
			{Path: "/b", Type: TypeDirectory},
		},
		Outputs: []IOEntry{
			{Path: "/a/out.txt", Type: TypeFile},
		},
	}
	assert.Equal(t, []string{"/a", "/a", "/a", "/b", "/a"}, task.MountPaths())
}

func TestIOEntryDir(t *testing.T) {
	assert.Equal(t, "/data", IOEntry{Path: "/data/in.txt", Type: TypeFile}.Dir())
	assert.Equal(t, "/data/dir", IOEntry{Path: "/data/dir", Type: TypeDirectory}.Dir())
}

func TestIOEntryValidate(t *testing.T) {
	content := "hello"
	require.NoError(t, IOEntry{Path: "/a", Type: TypeFile, Content: &content}.Validate(true))
	require.NoError(t, IOEntry{Path: "/a", Type: TypeFile, URL: "http://h/a"}.Validate(true))

	err := IOEntry{Path: "/a", Type: TypeFile}.Validate(true)
	require.Error(t, err)

	err = IOEntry{Path: "/a", Type: TypeFile, URL: "http://h/a", Content: &content}.Validate(true)
	require.Error(t, err)

	err = IOEntry{Path: "/a", Type: TypeFile, Content: &content}.Validate(false)
	require.Error(t, err)

	err = IOEntry{Path: "/a", Type: "BOGUS", URL: "http://h/a"}.Validate(true)
	require.Error(t, err)
}
