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

// Package clustertest provides an in-memory fake of cluster.Client for use
// in cluster, filer, and supervisor package tests, standing in for a real
// Kubernetes API server the way the teacher's dtstest package stands in for
// real databases and endpoints.
package clustertest

import (
	"context"
	"fmt"
	"sync"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Fake is an in-memory stand-in for the cluster's job/PVC API.
type Fake struct {
	mu sync.Mutex

	Jobs map[string]*batchv1.Job
	PVCs map[string]*corev1.PersistentVolumeClaim

	DeletedJobs []string
	DeletedPVCs []string

	// RejectJobs, when set, causes CreateJob to fail for the named job.
	RejectJobs map[string]bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Jobs:       make(map[string]*batchv1.Job),
		PVCs:       make(map[string]*corev1.PersistentVolumeClaim),
		RejectJobs: make(map[string]bool),
	}
}

func key(namespace, name string) string {
	return namespace + "/" + name
}

func (f *Fake) CreateJob(ctx context.Context, namespace string, job *batchv1.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RejectJobs[job.Name] {
		return fmt.Errorf("rejected by fake cluster")
	}
	f.Jobs[key(namespace, job.Name)] = job.DeepCopy()
	return nil
}

func (f *Fake) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, found := f.Jobs[key(namespace, name)]
	if !found {
		return nil, apierrors.NewNotFound(schema.GroupResource{Resource: "jobs"}, name)
	}
	return job.DeepCopy(), nil
}

func (f *Fake) DeleteJob(ctx context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Jobs, key(namespace, name))
	f.DeletedJobs = append(f.DeletedJobs, name)
	return nil
}

func (f *Fake) CreatePVC(ctx context.Context, namespace string, pvc *corev1.PersistentVolumeClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PVCs[key(namespace, pvc.Name)] = pvc.DeepCopy()
	return nil
}

func (f *Fake) DeletePVC(ctx context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.PVCs, key(namespace, name))
	f.DeletedPVCs = append(f.DeletedPVCs, name)
	return nil
}

// SetCondition sets the job's status.conditions to a single entry, as the
// cluster would report it, for use by Wait/refresh tests.
func (f *Fake) SetCondition(namespace, name string, conditionType batchv1.JobConditionType, status corev1.ConditionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, found := f.Jobs[key(namespace, name)]
	if !found {
		return
	}
	job.Status.Conditions = []batchv1.JobCondition{
		{Type: conditionType, Status: status},
	}
}

// LiveJobCount returns the number of jobs currently tracked as existing.
func (f *Fake) LiveJobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Jobs)
}

// LivePVCCount returns the number of volume claims currently tracked as
// existing.
func (f *Fake) LivePVCCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.PVCs)
}
