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

// Package cluster wraps the cluster's job and persistent-volume-claim API
// (assumed Kubernetes-compatible) behind a small interface, and implements
// the Job Handle and Volume Claim Handle components on top of it.
package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client is the subset of the cluster's job/volume-claim API the supervisor
// depends on. Production code talks to a real cluster through
// NewClientset; tests substitute an in-memory fake.
type Client interface {
	CreateJob(ctx context.Context, namespace string, job *batchv1.Job) error
	GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error)
	DeleteJob(ctx context.Context, namespace, name string) error
	CreatePVC(ctx context.Context, namespace string, pvc *corev1.PersistentVolumeClaim) error
	DeletePVC(ctx context.Context, namespace, name string) error
}

// clientset adapts a real k8s.io/client-go Clientset to the Client
// interface.
type clientset struct {
	cs *kubernetes.Clientset
}

// NewClientset builds a Client against a live cluster, preferring the
// in-cluster service account config and falling back to $KUBECONFIG (or
// ~/.kube/config) for out-of-cluster use, the same two-path pattern used by
// the Kubernetes driver this package's job-watching logic is grounded on.
func NewClientset(kubeconfigPath string) (Client, error) {
	conf, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfigPath == "" {
			kubeconfigPath = os.Getenv("KUBECONFIG")
		}
		if kubeconfigPath == "" {
			home, _ := os.UserHomeDir()
			kubeconfigPath = defaultKubeconfigPath(home)
		}
		conf, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("building kubernetes client config: %w", err)
		}
	}
	cs, err := kubernetes.NewForConfig(conf)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes clientset: %w", err)
	}
	return &clientset{cs: cs}, nil
}

func (c *clientset) CreateJob(ctx context.Context, namespace string, job *batchv1.Job) error {
	_, err := c.cs.BatchV1().Jobs(namespace).Create(ctx, job, metav1.CreateOptions{})
	return err
}

func (c *clientset) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	return c.cs.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
}

func (c *clientset) DeleteJob(ctx context.Context, namespace, name string) error {
	propagation := metav1.DeletePropagationBackground
	err := c.cs.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

func (c *clientset) CreatePVC(ctx context.Context, namespace string, pvc *corev1.PersistentVolumeClaim) error {
	_, err := c.cs.CoreV1().PersistentVolumeClaims(namespace).Create(ctx, pvc, metav1.CreateOptions{})
	return err
}

func (c *clientset) DeletePVC(ctx context.Context, namespace, name string) error {
	err := c.cs.CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// defaultKubeconfigPath returns the conventional location of the user's
// kubeconfig file, for out-of-cluster invocations.
func defaultKubeconfigPath(homeDir string) string {
	if homeDir == "" {
		return ""
	}
	return filepath.Join(homeDir, ".kube", "config")
}
