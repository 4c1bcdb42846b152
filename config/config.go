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
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// a type with supervisor configuration parameters
type serviceConfig struct {
	// how often job status is refreshed (milliseconds)
	// default: 5 seconds
	PollInterval int `json:"poll_interval" yaml:"poll_interval"`
	// container image cmd/transput ships in, run by every Filer job
	FilerImage string `json:"filer_image" yaml:"filer_image"`
	// cluster namespace jobs and volume claims are created in
	Namespace string `json:"namespace" yaml:"namespace"`
	// state file path; accepted and validated for CLI compatibility, but
	// never opened or written
	StateFile string `json:"state_file" yaml:"state_file"`
	// file the cancellation probe polls for a Cancelled marker, normally
	// a projected downward API volume
	CancellationLabelPath string `json:"cancellation_label_path" yaml:"cancellation_label_path"`
	// URL receiving task state transitions; no callbacks sent if empty
	CallbackURL string `json:"callback_url" yaml:"callback_url"`
	// flag indicating whether debug logging is enabled
	Debug bool `json:"debug" yaml:"debug"`
}

// FilerImageBase is the image cmd/transput ships in, without its version
// tag, so a caller overriding just the tag (the supervisor's
// --filer-version flag) doesn't have to parse the configured image string.
const FilerImageBase = "quay.io/elixir-cloud-aai/taskmaster-transput"

// global config variables
var Service serviceConfig
var FTPCredentials CredentialConfig
var S3Credentials CredentialConfig

// CredentialConfig names the secret a Filer job should read its transput
// credentials from, never the literal secret value.
type CredentialConfig struct {
	SecretName  string `yaml:"secret_name"`
	UserKey     string `yaml:"user_key"`
	PasswordKey string `yaml:"password_key"`
}

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service        serviceConfig    `yaml:"service"`
	FTPCredentials CredentialConfig `yaml:"ftp_credentials"`
	S3Credentials  CredentialConfig `yaml:"s3_credentials"`
}

// This helper applies the built-in defaults, then overlays the given YAML
// configuration data on them, returning an error indicating success or
// failure. All environment variables of the form ${ENV_VAR} are expanded.
func readConfig(bytes []byte) error {
	// before we do anything else, expand any provided environment variables
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.PollInterval = int(5 * time.Second / time.Millisecond)
	conf.Service.FilerImage = FilerImageBase + ":v0.1.9"
	conf.Service.Namespace = "default"
	conf.Service.StateFile = "/tmp/.teskstate"
	conf.Service.CancellationLabelPath = "/podinfo/labels"
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		log.Printf("Couldn't parse configuration data: %s\n", err)
		return err
	}

	// copy the config data into place
	Service = conf.Service
	FTPCredentials = conf.FTPCredentials
	S3Credentials = conf.S3Credentials

	return err
}

func validateServiceParameters(params serviceConfig) error {
	if params.PollInterval <= 0 {
		return fmt.Errorf("Non-positive poll interval specified: (%d ms)",
			params.PollInterval)
	}
	if params.FilerImage == "" {
		return fmt.Errorf("No filer_image specified")
	}
	if params.Namespace == "" {
		return fmt.Errorf("No namespace specified")
	}
	if params.StateFile == "" {
		return fmt.Errorf("No state_file specified")
	}
	return nil
}

// This helper validates the loaded Service configuration, returning an error
// that indicates success or failure.
func validateConfig() error {
	return validateServiceParameters(Service)
}

// Initializes the supervisor's configuration using the given YAML byte
// data. An empty/missing overlay is fine: readConfig applies the built-in
// defaults before overlaying anything.
func Init(yamlData []byte) error {
	err := readConfig(yamlData)
	if err != nil {
		return err
	}
	err = validateConfig()
	return err
}

// PollIntervalDuration returns Service.PollInterval as a time.Duration.
func PollIntervalDuration() time.Duration {
	return time.Duration(Service.PollInterval) * time.Millisecond
}
