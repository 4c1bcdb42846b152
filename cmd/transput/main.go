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

// Command transput runs the transput engine inside a single Filer job: given
// a staging direction and the JSON-encoded entry list the Filer Spec Builder
// embedded as its second argument, it moves every entry between the shared
// scratch volume and its remote URL (or materializes inline content), and
// exits nonzero if any entry failed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/elixir-cloud-aai/taskmaster/core"
	"github.com/elixir-cloud-aai/taskmaster/transput"
)

// batchRequest is the JSON document the Filer Spec Builder marshals as the
// second positional argument: the direction's IOEntry list.
type batchRequest struct {
	Entries []core.IOEntry `json:"entries"`
}

func enableLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	slog.Debug("debug logging enabled")
}

// directionFor maps the transputtype positional argument onto core.Direction.
func directionFor(transputType string) (core.Direction, error) {
	switch transputType {
	case "inputs":
		return core.DirectionDownload, nil
	case "outputs":
		return core.DirectionUpload, nil
	default:
		return "", &core.MalformedInputError{Reason: fmt.Sprintf("unknown transput type %q, expected inputs or outputs", transputType)}
	}
}

// runBatch moves every entry in req, logging per-entry failures but moving on
// to the rest so one bad entry doesn't hide the outcome of the others. It
// reports an error if any entry failed, matching the original's "any
// failure in the batch fails the job" contract.
func runBatch(ctx context.Context, direction core.Direction, req batchRequest) error {
	var failed int
	for _, entry := range req.Entries {
		if err := transput.Dispatch(ctx, direction, entry, entry.Path); err != nil {
			slog.Error("transput failed", "path", entry.Path, "url", entry.URL, "error", err.Error())
			failed++
			continue
		}
		slog.Info("transput complete", "path", entry.Path, "url", entry.URL)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transput entries failed", failed, len(req.Entries))
	}
	return nil
}

func newRootCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:          "transput <inputs|outputs> <data>",
		Short:        "Moves a task's staged files and directories to or from the shared scratch volume",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			enableLogging(debug)

			direction, err := directionFor(args[0])
			if err != nil {
				return err
			}

			var req batchRequest
			if err := json.Unmarshal([]byte(args[1]), &req); err != nil {
				return fmt.Errorf("parsing transput data argument: %w", err)
			}

			return runBatch(cmd.Context(), direction, req)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable verbose logging")
	return cmd
}

func main() {
	cmd := newRootCommand()
	cmd.SetContext(context.Background())
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
