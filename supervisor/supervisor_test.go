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

package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/elixir-cloud-aai/taskmaster/cluster"
	"github.com/elixir-cloud-aai/taskmaster/core"
	"github.com/elixir-cloud-aai/taskmaster/filer"
	"github.com/elixir-cloud-aai/taskmaster/internal/clustertest"
	"github.com/elixir-cloud-aai/taskmaster/supervisor/callback"
)

// resolveWhenCreated watches the fake cluster for a job under the given
// name and, as soon as it appears, sets the given terminal condition on it.
// Polling intervals in these tests are one millisecond, so Wait's own
// poll loop discovers the condition within a couple of cycles.
func resolveWhenCreated(fake *clustertest.Fake, namespace, name string, conditionType batchv1.JobConditionType) {
	go func() {
		for {
			if _, err := fake.GetJob(context.Background(), namespace, name); err == nil {
				fake.SetCondition(namespace, name, conditionType, corev1.ConditionTrue)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

func executorSpec(t *testing.T) json.RawMessage {
	t.Helper()
	spec := batchv1.JobSpec{
		Template: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{
				RestartPolicy: corev1.RestartPolicyNever,
				Containers:    []corev1.Container{{Name: "main", Image: "busybox"}},
			},
		},
	}
	data, err := json.Marshal(spec)
	require.NoError(t, err)
	return data
}

func fixtureTask(t *testing.T, taskName string, needsStaging bool) *core.Task {
	task := &core.Task{
		Executors: []core.Executor{{
			Metadata: core.ExecutorMetadata{
				Name:   taskName + "-executor-0",
				Labels: map[string]string{core.TaskNameLabel: taskName},
			},
			Spec: executorSpec(t),
		}},
	}
	if needsStaging {
		task.Inputs = []core.IOEntry{{Path: "/data/in.txt", Type: core.TypeFile, URL: "https://example.com/in.txt"}}
		task.Outputs = []core.IOEntry{{Path: "/data/out.txt", Type: core.TypeFile, URL: "https://example.com/out.txt"}}
		task.Resources = core.Resources{DiskGB: 1}
	}
	return task
}

func newTestSupervisor(fake *clustertest.Fake, emitter *callback.Emitter, cancelled bool) *Supervisor {
	return &Supervisor{
		Client:       fake,
		FilerBuilder: filer.Builder{Image: "filer:latest"},
		Callback:     emitter,
		Cancelled:    func() bool { return cancelled },
		Namespace:    "tasks",
		PollInterval: time.Millisecond,
	}
}

func TestSupervisorRunSucceedsWithoutStaging(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), false)
	task := fixtureTask(t, "task-1", false)

	resolveWhenCreated(fake, "tasks", "task-1-executor-0", batchv1.JobComplete)

	state, err := sup.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, callback.StateComplete, state)
}

func TestSupervisorRunSucceedsWithStaging(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), false)
	task := fixtureTask(t, "task-1", true)

	resolveWhenCreated(fake, "tasks", "task-1-inputs-filer", batchv1.JobComplete)
	resolveWhenCreated(fake, "tasks", "task-1-executor-0", batchv1.JobComplete)
	resolveWhenCreated(fake, "tasks", "task-1-outputs-filer", batchv1.JobComplete)

	state, err := sup.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, callback.StateComplete, state)
	assert.Equal(t, 0, fake.LivePVCCount())
}

func TestSupervisorRunReportsExecutorFailure(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), false)
	task := fixtureTask(t, "task-1", false)

	resolveWhenCreated(fake, "tasks", "task-1-executor-0", batchv1.JobFailed)

	state, err := sup.Run(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, callback.StateFailed, state)

	var failure *core.JobFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "task-1-executor-0", failure.JobName)
	assert.Equal(t, "Failed", failure.Status)
	assert.Equal(t, 0, fake.LiveJobCount())
}

func TestSupervisorRunHonorsCancellation(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), true)
	task := fixtureTask(t, "task-1", false)

	state, err := sup.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, callback.StateCancelled, state)
	assert.Equal(t, 0, fake.LiveJobCount())
}

func TestSupervisorRunCancelledDuringInitCreatesNothing(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), true)
	task := fixtureTask(t, "task-1", true)

	state, err := sup.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, callback.StateCancelled, state)
	assert.Equal(t, 0, fake.LiveJobCount())
	assert.Equal(t, 0, fake.LivePVCCount())
}

func TestSupervisorRunExecutorJobCarriesTaskNameLabel(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), false)
	task := fixtureTask(t, "task-1", false)

	resolveWhenCreated(fake, "tasks", "task-1-executor-0", batchv1.JobComplete)

	_, err := sup.Run(context.Background(), task)
	require.NoError(t, err)

	job, err := fake.GetJob(context.Background(), "tasks", "task-1-executor-0")
	require.NoError(t, err)
	assert.Equal(t, "task-1", job.ObjectMeta.Labels[core.TaskNameLabel])
}

func TestSupervisorRunCancelsDuringStaging(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), false)
	// The probe stays clear for the init check and fires on the first poll
	// of the inputs filer.
	var probes int
	sup.Cancelled = func() bool {
		probes++
		return probes > 1
	}
	task := fixtureTask(t, "task-1", true)

	state, err := sup.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, callback.StateCancelled, state)
	assert.Contains(t, fake.DeletedJobs, "task-1-inputs-filer")
	assert.Equal(t, 0, fake.LiveJobCount())
	assert.Equal(t, 0, fake.LivePVCCount())
}

func TestSupervisorRunEmitsCallbackSequence(t *testing.T) {
	var mu sync.Mutex
	var states []callback.State
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			State callback.State `json:"state"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		states = append(states, body.State)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", server.URL), false)
	task := fixtureTask(t, "task-1", true)

	resolveWhenCreated(fake, "tasks", "task-1-inputs-filer", batchv1.JobComplete)
	resolveWhenCreated(fake, "tasks", "task-1-executor-0", batchv1.JobComplete)
	resolveWhenCreated(fake, "tasks", "task-1-outputs-filer", batchv1.JobComplete)

	_, err := sup.Run(context.Background(), task)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []callback.State{
		callback.StateInitializing,
		callback.StateRunning,
		callback.StateComplete,
	}, states)
}

func TestSupervisorCleanUpIsIdempotent(t *testing.T) {
	fake := clustertest.New()
	sup := newTestSupervisor(fake, callback.NewEmitter("task-1", ""), false)
	sup.createdJobs = []*cluster.JobHandle{cluster.NewJobHandle(fake, &batchv1.Job{}, "leftover", "tasks")}

	sup.CleanUp(context.Background())
	sup.CleanUp(context.Background())
	assert.Equal(t, 0, fake.LiveJobCount())
}
