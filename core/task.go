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

// Package core holds the data model shared by the cluster, filer, transput,
// and supervisor packages: the task document decoded from the incoming JSON
// request and the small value types derived from it.
package core

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// IOType identifies whether an input or output entry is a single file or an
// entire directory.
type IOType string

const (
	TypeFile      IOType = "FILE"
	TypeDirectory IOType = "DIRECTORY"
)

// Direction says whether a transput engine call is pulling data onto the
// scratch volume or pushing it off.
type Direction string

const (
	DirectionDownload Direction = "inputs"
	DirectionUpload   Direction = "outputs"
)

// Resources carries the disk size requested for the task's scratch volume.
type Resources struct {
	DiskGB int `json:"disk_gb"`
}

// IOEntry is one element of a task's inputs[] or outputs[] list.
type IOEntry struct {
	Path    string  `json:"path"`
	Type    IOType  `json:"type"`
	URL     string  `json:"url,omitempty"`
	Content *string `json:"content,omitempty"`
	MD5     string  `json:"md5,omitempty"`
}

// Dir returns the directory that must exist on the scratch volume for this
// entry: the entry's own path for a DIRECTORY, the dirname of its path for a
// FILE.
func (e IOEntry) Dir() string {
	if e.Type == TypeDirectory {
		return e.Path
	}
	return filepath.Dir(e.Path)
}

// Validate enforces the mutual exclusivity of url and content, and rejects
// unknown types, per spec: MalformedInput covers unknown `type`, and
// missing both `url` and `content`.
func (e IOEntry) Validate(allowContent bool) error {
	switch e.Type {
	case TypeFile, TypeDirectory:
	default:
		return &MalformedInputError{Reason: fmt.Sprintf("unknown io type %q for path %q", e.Type, e.Path)}
	}
	if e.Content != nil && e.URL != "" {
		return &MalformedInputError{Reason: fmt.Sprintf("path %q specifies both url and content", e.Path)}
	}
	if e.Content != nil && !allowContent {
		return &MalformedInputError{Reason: fmt.Sprintf("path %q specifies content, which is only valid for inputs", e.Path)}
	}
	if e.Content == nil && e.URL == "" {
		return &MalformedInputError{Reason: fmt.Sprintf("path %q specifies neither url nor content", e.Path)}
	}
	return nil
}

// Executor is one executors[] entry: a full cluster job pod template plus the
// labels the supervisor reads to name jobs and group them under one task.
type Executor struct {
	Metadata ExecutorMetadata `json:"metadata"`
	Spec     json.RawMessage  `json:"spec"`
}

// ExecutorMetadata is the metadata block of an executor entry.
type ExecutorMetadata struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
}

// TaskNameLabel is the label key carrying the shared task identifier across
// every executor of one task.
const TaskNameLabel = "taskmaster-name"

// TaskName returns the task-wide identifier carried by this executor's
// labels, or an empty string if absent.
func (e Executor) TaskName() string {
	return e.Metadata.Labels[TaskNameLabel]
}

// Task is the top-level document the supervisor is given to execute.
type Task struct {
	Executors []Executor `json:"executors"`
	Inputs    []IOEntry  `json:"inputs"`
	Outputs   []IOEntry  `json:"outputs"`
	Volumes   []string   `json:"volumes"`
	Resources Resources  `json:"resources"`
}

// ParseTask decodes a Task from raw JSON bytes.
func ParseTask(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parsing task JSON: %w", err)
	}
	if len(task.Executors) == 0 {
		return nil, &MalformedInputError{Reason: "task has no executors"}
	}
	return &task, nil
}

// Name returns the task-wide identifier shared by all of its executors, per
// the first executor's taskmaster-name label.
func (t Task) Name() string {
	return t.Executors[0].TaskName()
}

// NeedsStaging reports whether this task requires a scratch volume and
// input/output Filer jobs at all: it does iff any of volumes, inputs, or
// outputs is non-empty.
func (t Task) NeedsStaging() bool {
	return len(t.Volumes) > 0 || len(t.Inputs) > 0 || len(t.Outputs) > 0
}

// MountPaths returns the full, ordered, possibly-duplicated list of paths
// that must be mounted into every executor and Filer pod: the task's
// volumes[] followed by the directory component of every input and output
// entry, in declaration order. Duplicates are preserved deliberately — see
// cluster.VolumeClaimHandle's uniqueness invariant.
func (t Task) MountPaths() []string {
	paths := make([]string, 0, len(t.Volumes)+len(t.Inputs)+len(t.Outputs))
	paths = append(paths, t.Volumes...)
	for _, in := range t.Inputs {
		paths = append(paths, in.Dir())
	}
	for _, out := range t.Outputs {
		paths = append(paths, out.Dir())
	}
	return paths
}
