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

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// MountDescriptor is one volumeMounts entry referencing the claim.
type MountDescriptor struct {
	Path    string
	SubPath string
}

// VolumeClaimHandle allocates a task-scoped shared volume and computes the
// mount descriptors every Filer and executor pod needs to reference it.
type VolumeClaimHandle struct {
	Name       string
	Namespace  string
	BaseName   string
	mounts     []MountDescriptor
	client     Client
}

// NewVolumeClaimHandle synthesizes a claim spec sized sizeGB gigabytes,
// submits it, and computes one mount descriptor per entry in paths — one
// descriptor per entry, even when the same logical path repeats, each with
// its own freshly generated sub-path tag so that two mounts targeting the
// same path never alias on disk.
func NewVolumeClaimHandle(ctx context.Context, client Client, paths []string, baseName, name string, sizeGB int, namespace string) (*VolumeClaimHandle, error) {
	quantity := resource.MustParse(fmt.Sprintf("%dGi", sizeGB))
	spec := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: quantity,
				},
			},
		},
	}

	if err := client.CreatePVC(ctx, namespace, spec); err != nil {
		return nil, &core.ClusterRejectedError{Resource: "persistentvolumeclaim", Name: name, Message: err.Error()}
	}

	mounts := make([]MountDescriptor, len(paths))
	for i, path := range paths {
		mounts[i] = MountDescriptor{Path: path, SubPath: uuid.New().String()}
	}
	slog.Debug("allocated volume claim", "name", name, "mounts", len(mounts))

	return &VolumeClaimHandle{
		Name:      name,
		Namespace: namespace,
		BaseName:  baseName,
		mounts:    mounts,
		client:    client,
	}, nil
}

// Mounts returns the list of mount descriptors computed at construction.
func (h *VolumeClaimHandle) Mounts() []MountDescriptor {
	return h.mounts
}

// Volume returns a volume descriptor referencing this claim by name,
// non-read-only.
func (h *VolumeClaimHandle) Volume() corev1.Volume {
	return corev1.Volume{
		Name: h.BaseName,
		VolumeSource: corev1.VolumeSource{
			PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
				ClaimName: h.Name,
				ReadOnly:  false,
			},
		},
	}
}

// VolumeMounts renders this claim's mount descriptors as container volume
// mounts, ready to be assigned to containers[0].volumeMounts.
func (h *VolumeClaimHandle) VolumeMounts() []corev1.VolumeMount {
	mounts := make([]corev1.VolumeMount, len(h.mounts))
	for i, m := range h.mounts {
		mounts[i] = corev1.VolumeMount{
			Name:      h.BaseName,
			MountPath: m.Path,
			SubPath:   m.SubPath,
		}
	}
	return mounts
}

// Delete requests deletion of the claim. Idempotent and best-effort.
func (h *VolumeClaimHandle) Delete(ctx context.Context) {
	if err := h.client.DeletePVC(ctx, h.Namespace, h.Name); err != nil && !apierrors.IsNotFound(err) {
		slog.Error("failed to delete volume claim", "name", h.Name, "error", err.Error())
	}
}
