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

import "fmt"

// ClusterRejectedError is returned when the cluster API refuses a job or
// volume claim spec submitted by the supervisor.
type ClusterRejectedError struct {
	Resource, Name, Message string
}

func (e ClusterRejectedError) Error() string {
	return fmt.Sprintf("cluster rejected %s %q: %s", e.Resource, e.Name, e.Message)
}

// JobFailureError is returned when a waited job terminates in Failed or
// Error rather than Complete.
type JobFailureError struct {
	JobName, Status string
}

func (e JobFailureError) Error() string {
	return fmt.Sprintf("job %q terminated with status %s", e.JobName, e.Status)
}

// MalformedInputError covers unknown url schemes, missing both url and
// content, and unknown io types.
type MalformedInputError struct {
	Reason string
}

func (e MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

// UnsupportedOperationError is returned for operations the transput engine
// deliberately does not implement, such as HTTP directory download.
type UnsupportedOperationError struct {
	Operation, Detail string
}

func (e UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %q: %s", e.Operation, e.Detail)
}

// ProtocolRejectError covers non-2xx HTTP responses, permanent FTP errors,
// and S3 client errors.
type ProtocolRejectError struct {
	Protocol, Detail string
}

func (e ProtocolRejectError) Error() string {
	return fmt.Sprintf("%s rejected request: %s", e.Protocol, e.Detail)
}
