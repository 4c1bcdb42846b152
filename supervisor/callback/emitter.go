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

// Package callback posts task state transitions to an external receiver.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
)

// State is one of the task-level states the emitter reports. These are
// additive to the cluster job states in package cluster: a task moves
// through them at a coarser granularity than any one job does.
type State string

const (
	StateQueued       State = "Queued"
	StateInitializing State = "Initializing"
	StateRunning      State = "Running"
	StateComplete     State = "Complete"
	StateCancelled    State = "Cancelled"
	StateFailed       State = "Failed"
	StateSystemError  State = "SystemError"
)

// maxTimeoutRetries caps the number of extra attempts made after a
// request times out. There is no backoff between attempts: a retry policy
// here is strictly a timeout retry count, not exponential backoff.
const maxTimeoutRetries = 3

// Emitter posts {id, state} to a fixed URL. An empty URL makes every Emit
// call a no-op, the same as the original sender's unset-url short circuit.
type Emitter struct {
	TaskID string
	URL    string
	Client *http.Client
}

// NewEmitter builds an Emitter using http.DefaultClient.
func NewEmitter(taskID, url string) *Emitter {
	return &Emitter{TaskID: taskID, URL: url, Client: http.DefaultClient}
}

type message struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}

// Emit posts the given state to the emitter's URL. Timeouts are retried up
// to maxTimeoutRetries additional times with no delay between attempts;
// any other transport error is logged and abandoned without retry, mirroring
// the original sender's behavior on TooManyRedirects/RequestException.
func (e *Emitter) Emit(ctx context.Context, state State) {
	if e.URL == "" {
		return
	}

	body, err := json.Marshal(message{ID: e.TaskID, State: state})
	if err != nil {
		slog.Error("encoding callback body", "error", err.Error())
		return
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
		if err != nil {
			slog.Error("building callback request", "error", err.Error())
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.Client.Do(req)
		if err == nil {
			resp.Body.Close()
			return
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if attempt >= maxTimeoutRetries {
				slog.Error("callback timeout, giving up", "url", e.URL)
				return
			}
			continue
		}
		slog.Error("callback request failed", "url", e.URL, "error", err.Error())
		return
	}
}
