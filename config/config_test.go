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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAppliesDefaults(t *testing.T) {
	require.NoError(t, Init([]byte{}))
	assert.Equal(t, "default", Service.Namespace)
	assert.Equal(t, "/tmp/.teskstate", Service.StateFile)
	assert.Equal(t, "/podinfo/labels", Service.CancellationLabelPath)
	assert.Equal(t, 5*time.Second, PollIntervalDuration())
}

func TestInitOverlayOverridesDefaults(t *testing.T) {
	yamlData := []byte(`
service:
  namespace: tasks
  poll_interval: 2000
  debug: true
ftp_credentials:
  secret_name: ftp-creds
  user_key: username
  password_key: password
`)
	require.NoError(t, Init(yamlData))
	assert.Equal(t, "tasks", Service.Namespace)
	assert.Equal(t, 2*time.Second, PollIntervalDuration())
	assert.True(t, Service.Debug)
	assert.Equal(t, "ftp-creds", FTPCredentials.SecretName)
}

func TestInitExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TASKMASTER_TEST_NAMESPACE", "env-namespace")
	yamlData := []byte("service:\n  namespace: ${TASKMASTER_TEST_NAMESPACE}\n")
	require.NoError(t, Init(yamlData))
	assert.Equal(t, "env-namespace", Service.Namespace)
}

func TestInitRejectsNonPositivePollInterval(t *testing.T) {
	yamlData := []byte("service:\n  poll_interval: 0\n")
	assert.Error(t, Init(yamlData))
}

func TestInitRejectsEmptyNamespace(t *testing.T) {
	yamlData := []byte("service:\n  namespace: \"\"\n")
	assert.Error(t, Init(yamlData))
}
