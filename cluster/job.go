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

package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// State is the lifecycle of a single Job Handle.
type State string

const (
	StateInitialized State = "Initialized"
	StateRunning     State = "Running"
	StateComplete    State = "Complete"
	StateFailed      State = "Failed"
	StateError       State = "Error"
	StateCancelled   State = "Cancelled"
)

// Terminal reports whether this state ends a wait loop.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateError, StateCancelled:
		return true
	default:
		return false
	}
}

// CancelProbe is consulted once per poll cycle inside Wait.
type CancelProbe func() bool

// JobHandle submits a single cluster job spec, polls it to completion, and
// deletes it. It is the "Job Handle" component of the supervisor.
type JobHandle struct {
	Name      string
	Namespace string
	spec      *batchv1.Job
	state     State
	client    Client
}

// NewJobHandle wraps a job spec (the executor's own pod template, or a Filer
// spec) under the given name. The spec's metadata.name is overwritten to
// match name, mirroring the original's Job.__init__.
func NewJobHandle(client Client, spec *batchv1.Job, name, namespace string) *JobHandle {
	spec.ObjectMeta.Name = name
	spec.ObjectMeta.Namespace = namespace
	return &JobHandle{
		Name:      name,
		Namespace: namespace,
		spec:      spec,
		state:     StateInitialized,
		client:    client,
	}
}

// State returns the handle's last-observed state.
func (h *JobHandle) State() State {
	return h.state
}

// Submit posts the embedded job spec to the cluster.
func (h *JobHandle) Submit(ctx context.Context) error {
	slog.Debug("submitting job", "name", h.Name, "namespace", h.Namespace)
	if err := h.client.CreateJob(ctx, h.Namespace, h.spec); err != nil {
		return &core.ClusterRejectedError{Resource: "job", Name: h.Name, Message: err.Error()}
	}
	h.state = StateRunning
	return nil
}

// Wait polls the cluster until the job reaches a terminal state or the
// cancel probe fires. On cancellation it deletes the job, sets the state to
// Cancelled, and returns without error.
func (h *JobHandle) Wait(ctx context.Context, pollInterval time.Duration, cancelled CancelProbe) (State, error) {
	for {
		state, err := h.refresh(ctx)
		if err != nil {
			return h.state, err
		}
		if state.Terminal() {
			return state, nil
		}
		if cancelled() {
			h.Delete(ctx)
			h.state = StateCancelled
			return StateCancelled, nil
		}
		select {
		case <-ctx.Done():
			return h.state, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// refresh polls the cluster once and maps the job's conditions[] onto our
// State enum, per the state-mapping rule: read status.conditions[0]; absent
// ⇒ Running; status=true and type ∈ {Complete, Failed} ⇒ that value;
// anything else ⇒ Error. Only the first condition is ever consulted, even
// if the cluster reports more than one.
func (h *JobHandle) refresh(ctx context.Context) (State, error) {
	job, err := h.client.GetJob(ctx, h.Namespace, h.Name)
	if err != nil {
		return h.state, fmt.Errorf("polling job %q: %w", h.Name, err)
	}
	if len(job.Status.Conditions) == 0 {
		h.state = StateRunning
		return h.state, nil
	}
	condition := job.Status.Conditions[0]
	if condition.Status == "True" {
		switch batchv1.JobConditionType(condition.Type) {
		case batchv1.JobComplete:
			h.state = StateComplete
			return h.state, nil
		case batchv1.JobFailed:
			h.state = StateFailed
			return h.state, nil
		}
	}
	h.state = StateError
	return h.state, nil
}

// Delete requests deletion of the job. It is idempotent and best-effort:
// errors are logged, never returned, so cleanup paths can call it freely.
func (h *JobHandle) Delete(ctx context.Context) {
	if err := h.client.DeleteJob(ctx, h.Namespace, h.Name); err != nil && !apierrors.IsNotFound(err) {
		slog.Error("failed to delete job", "name", h.Name, "error", err.Error())
	}
}
