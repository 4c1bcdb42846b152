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

// Package supervisor runs a single task to completion: it stages inputs,
// runs every executor in order, and stages outputs. When the task fails or
// is cancelled it deletes every job and the volume claim it created; when
// the task succeeds it deletes the volume claim and leaves the jobs in place.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/elixir-cloud-aai/taskmaster/cluster"
	"github.com/elixir-cloud-aai/taskmaster/core"
	"github.com/elixir-cloud-aai/taskmaster/filer"
	"github.com/elixir-cloud-aai/taskmaster/supervisor/callback"
)

const volumeBaseName = "task-volume"

// Supervisor owns every cluster resource created while running one task, so
// that a cancellation or an OS signal has a single place to ask for
// cleanup. It deliberately holds this as state on a struct instead of
// package-level variables.
type Supervisor struct {
	Client       cluster.Client
	FilerBuilder filer.Builder
	Callback     *callback.Emitter
	Cancelled    cluster.CancelProbe
	Namespace    string
	PollInterval time.Duration

	createdJobs  []*cluster.JobHandle
	createdClaim *cluster.VolumeClaimHandle
}

// Run executes task end to end and reports the task-level state it ended
// in. Failed and SystemError are always accompanied by a non-nil error;
// Complete and Cancelled return a nil error, so a cancelled task counts as
// a clean exit for callers that decide the exit code from the error.
func (s *Supervisor) Run(ctx context.Context, task *core.Task) (callback.State, error) {
	s.Callback.Emit(ctx, callback.StateInitializing)
	taskName := task.Name()

	if s.Cancelled != nil && s.Cancelled() {
		slog.Info("cancelled during init", "task", taskName)
		s.CleanUp(ctx)
		s.Callback.Emit(ctx, callback.StateCancelled)
		return callback.StateCancelled, nil
	}

	if task.NeedsStaging() {
		claim, err := cluster.NewVolumeClaimHandle(ctx, s.Client, task.MountPaths(), volumeBaseName, taskName+"-pvc", task.Resources.DiskGB, s.Namespace)
		if err != nil {
			return s.terminal(ctx, callback.StateSystemError, err)
		}
		s.createdClaim = claim

		name := taskName + "-inputs-filer"
		if state, err := s.runFiler(ctx, task, core.DirectionDownload, name); err != nil || state != cluster.StateComplete {
			return s.terminalForJobState(ctx, name, state, err)
		}
	}

	s.Callback.Emit(ctx, callback.StateRunning)
	for i, executor := range task.Executors {
		name := executor.Metadata.Name
		if name == "" {
			name = fmt.Sprintf("%s-executor-%d", taskName, i)
		}
		state, err := s.runExecutor(ctx, executor, i, name, taskName)
		if err != nil || state != cluster.StateComplete {
			return s.terminalForJobState(ctx, name, state, err)
		}
	}

	if task.NeedsStaging() {
		name := taskName + "-outputs-filer"
		if state, err := s.runFiler(ctx, task, core.DirectionUpload, name); err != nil || state != cluster.StateComplete {
			return s.terminalForJobState(ctx, name, state, err)
		}
		s.createdClaim.Delete(ctx)
	}

	s.Callback.Emit(ctx, callback.StateComplete)
	return callback.StateComplete, nil
}

// runExecutor submits one executor's job spec, patching in the shared
// volume's mounts when the task staged anything, and waits for it.
func (s *Supervisor) runExecutor(ctx context.Context, executor core.Executor, index int, name, taskName string) (cluster.State, error) {
	var spec batchv1.JobSpec
	if err := json.Unmarshal(executor.Spec, &spec); err != nil {
		return "", &core.MalformedInputError{Reason: fmt.Sprintf("executor %d: %s", index, err)}
	}
	if s.createdClaim != nil && len(spec.Template.Spec.Containers) > 0 {
		spec.Template.Spec.Containers[0].VolumeMounts = s.createdClaim.VolumeMounts()
		spec.Template.Spec.Volumes = []corev1.Volume{s.createdClaim.Volume()}
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Labels: map[string]string{core.TaskNameLabel: taskName},
		},
		Spec: spec,
	}
	handle := cluster.NewJobHandle(s.Client, job, name, s.Namespace)
	s.createdJobs = append(s.createdJobs, handle)

	slog.Debug("submitting executor", "name", name)
	if err := handle.Submit(ctx); err != nil {
		return "", err
	}
	return handle.Wait(ctx, s.PollInterval, s.Cancelled)
}

// runFiler submits and waits for a Filer job staging task's inputs or
// outputs over the shared volume claim.
func (s *Supervisor) runFiler(ctx context.Context, task *core.Task, direction core.Direction, name string) (cluster.State, error) {
	spec, err := s.FilerBuilder.Build(task, direction, s.createdClaim, name, s.Namespace)
	if err != nil {
		return "", err
	}
	handle := cluster.NewJobHandle(s.Client, spec, name, s.Namespace)
	s.createdJobs = append(s.createdJobs, handle)

	slog.Debug("submitting filer", "name", name, "direction", direction)
	if err := handle.Submit(ctx); err != nil {
		return "", err
	}
	return handle.Wait(ctx, s.PollInterval, s.Cancelled)
}

// terminalForJobState maps a job's terminal cluster state onto the
// corresponding task-level callback state, emits it, and cleans up.
func (s *Supervisor) terminalForJobState(ctx context.Context, jobName string, state cluster.State, err error) (callback.State, error) {
	if err != nil {
		return s.terminal(ctx, callback.StateSystemError, err)
	}
	switch state {
	case cluster.StateCancelled:
		s.CleanUp(ctx)
		s.Callback.Emit(ctx, callback.StateCancelled)
		return callback.StateCancelled, nil
	case cluster.StateFailed, cluster.StateError:
		return s.terminal(ctx, callback.StateFailed, &core.JobFailureError{JobName: jobName, Status: string(state)})
	default:
		return s.terminal(ctx, callback.StateSystemError, fmt.Errorf("unexpected job state %q", state))
	}
}

func (s *Supervisor) terminal(ctx context.Context, state callback.State, err error) (callback.State, error) {
	s.CleanUp(ctx)
	s.Callback.Emit(ctx, state)
	return state, err
}

// CleanUp deletes every job and the volume claim this Supervisor has
// created so far. It is idempotent and safe to call more than once, so
// both the normal failure path and an OS signal handler can call it.
func (s *Supervisor) CleanUp(ctx context.Context) {
	for _, job := range s.createdJobs {
		job.Delete(ctx)
	}
	s.createdJobs = nil

	if s.createdClaim != nil {
		s.createdClaim.Delete(ctx)
		s.createdClaim = nil
	}
}
