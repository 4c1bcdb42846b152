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

// Command taskmaster runs a single task to completion: it is invoked once
// per task by an outer scheduling service, given the task document as its
// argument, and exits zero on completion or cancellation, nonzero otherwise.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/elixir-cloud-aai/taskmaster/cluster"
	"github.com/elixir-cloud-aai/taskmaster/config"
	"github.com/elixir-cloud-aai/taskmaster/core"
	"github.com/elixir-cloud-aai/taskmaster/filer"
	"github.com/elixir-cloud-aai/taskmaster/supervisor"
	"github.com/elixir-cloud-aai/taskmaster/supervisor/callback"
)

func enableLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	slog.Debug("debug logging enabled")
}

func readTaskJSON(positional, file string) ([]byte, error) {
	if positional != "" && file != "" {
		return nil, fmt.Errorf("specify the task either as a positional argument or with -f/--file, not both")
	}
	if positional != "" {
		return []byte(positional), nil
	}
	if file == "" {
		return nil, fmt.Errorf("a task document is required, as a positional argument or via -f/--file")
	}
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func credentialRef(c config.CredentialRef) *filer.SecretRef {
	if c.SecretName == "" {
		return nil
	}
	return &filer.SecretRef{SecretName: c.SecretName, UserKey: c.UserKey, PasswordKey: c.PasswordKey}
}

func newRootCommand() *cobra.Command {
	var (
		file         string
		pollInterval int
		filerVersion string
		namespace    string
		stateFile    string
		debug        bool
	)

	cmd := &cobra.Command{
		Use:          "taskmaster [json]",
		Short:        "Runs a single GA4GH-style task to completion on a cluster",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var positional string
			if len(args) == 1 {
				positional = args[0]
			}

			data, err := readTaskJSON(positional, file)
			if err != nil {
				return err
			}
			task, err := core.ParseTask(data)
			if err != nil {
				return err
			}

			if err := config.Init(nil); err != nil {
				return fmt.Errorf("initializing configuration: %w", err)
			}
			if cmd.Flags().Changed("namespace") {
				config.Service.Namespace = namespace
			}
			if cmd.Flags().Changed("poll-interval") {
				config.Service.PollInterval = pollInterval * 1000
			}
			if cmd.Flags().Changed("state-file") {
				config.Service.StateFile = stateFile
			}
			if cmd.Flags().Changed("filer-version") {
				config.Service.FilerImage = config.FilerImageBase + ":" + filerVersion
			}
			if debug {
				config.Service.Debug = true
			}
			enableLogging(config.Service.Debug)

			client, err := cluster.NewClientset("")
			if err != nil {
				return fmt.Errorf("connecting to cluster: %w", err)
			}

			sup := &supervisor.Supervisor{
				Client: client,
				FilerBuilder: filer.Builder{
					Image:          config.Service.FilerImage,
					FTPCredentials: credentialRef(config.FTPCredentials),
					S3Credentials:  credentialRef(config.S3Credentials),
				},
				Callback:     callback.NewEmitter(task.Name(), config.Service.CallbackURL),
				Cancelled:    supervisor.CancellationProbe(config.Service.CancellationLabelPath),
				Namespace:    config.Service.Namespace,
				PollInterval: config.PollIntervalDuration(),
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
			go func() {
				<-sigChan
				slog.Info("received interrupt, cleaning up", "task", task.Name())
				sup.CleanUp(context.Background())
				cancel()
			}()

			state, err := sup.Run(ctx, task)
			if err != nil {
				slog.Error("task did not complete", "task", task.Name(), "state", state, "error", err.Error())
				return err
			}
			slog.Info("task finished", "task", task.Name(), "state", state)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the task document from a file, or stdin if -")
	cmd.Flags().IntVarP(&pollInterval, "poll-interval", "p", 5, "job status poll interval, in seconds")
	// pflag shorthands are a single ASCII character, unlike argparse's, so
	// -fv from the original CLI becomes a long-only flag here.
	cmd.Flags().StringVar(&filerVersion, "filer-version", "v0.1.9", "filer image tag")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "cluster namespace for jobs and volume claims")
	cmd.Flags().StringVarP(&stateFile, "state-file", "s", "/tmp/.teskstate", "unused, accepted for compatibility")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable verbose logging")

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
