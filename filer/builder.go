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

// Package filer builds the cluster job spec that runs cmd/transput, the
// out-of-process helper that actually moves a task's input or output set
// onto or off of the shared scratch volume.
package filer

import (
	"encoding/json"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/elixir-cloud-aai/taskmaster/cluster"
	"github.com/elixir-cloud-aai/taskmaster/core"
)

// Image and container naming conventions for Filer jobs.
const (
	ContainerName = "filer"
	RestartPolicy = corev1.RestartPolicyNever
)

// Builder produces the batch Job spec for one staging direction (inputs or
// outputs) of one task.
type Builder struct {
	Image          string
	BackoffLimit   int32
	FTPCredentials *SecretRef
	S3Credentials  *SecretRef
}

// SecretRef names a Kubernetes secret carrying credentials to inject as
// environment variables, never inlined into the transput JSON payload.
type SecretRef struct {
	SecretName  string
	UserKey     string
	PasswordKey string
}

// payload is the JSON document cmd/transput expects as its second
// positional argument: the direction's IOEntry list.
type payload struct {
	Entries []core.IOEntry `json:"entries"`
}

// Build renders the batch Job spec for staging a task's inputs or outputs,
// mounting the given volume claim's descriptors identically to how the
// task's own executors mount it.
func (b Builder) Build(task *core.Task, direction core.Direction, claim *cluster.VolumeClaimHandle, name, namespace string) (*batchv1.Job, error) {
	var entries []core.IOEntry
	switch direction {
	case core.DirectionDownload:
		entries = task.Inputs
	case core.DirectionUpload:
		entries = task.Outputs
	default:
		return nil, &core.MalformedInputError{Reason: fmt.Sprintf("unknown staging direction %q", direction)}
	}

	data, err := json.Marshal(payload{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("encoding filer payload: %w", err)
	}

	backoffLimit := b.BackoffLimit
	container := corev1.Container{
		Name:         ContainerName,
		Image:        b.Image,
		Args:         []string{string(direction), string(data)},
		VolumeMounts: claim.VolumeMounts(),
		Env:          b.environment(),
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				core.TaskNameLabel: task.Name(),
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						core.TaskNameLabel: task.Name(),
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: RestartPolicy,
					Containers:    []corev1.Container{container},
					Volumes:       []corev1.Volume{claim.Volume()},
				},
			},
		},
	}
	return job, nil
}

// environment renders the FTP and S3 credential env vars, each sourced from
// a secret key reference rather than a literal value, so that credentials
// never appear in the job spec or the transput JSON payload.
func (b Builder) environment() []corev1.EnvVar {
	var env []corev1.EnvVar
	if b.FTPCredentials != nil {
		env = append(env,
			secretEnvVar("TESK_FTP_USERNAME", b.FTPCredentials.SecretName, b.FTPCredentials.UserKey),
			secretEnvVar("TESK_FTP_PASSWORD", b.FTPCredentials.SecretName, b.FTPCredentials.PasswordKey),
		)
	}
	if b.S3Credentials != nil {
		env = append(env,
			secretEnvVar("TESK_S3_ACCESS_KEY", b.S3Credentials.SecretName, b.S3Credentials.UserKey),
			secretEnvVar("TESK_S3_SECRET_KEY", b.S3Credentials.SecretName, b.S3Credentials.PasswordKey),
		)
	}
	return env
}

func secretEnvVar(name, secretName, key string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
				Key:                  key,
			},
		},
	}
}
