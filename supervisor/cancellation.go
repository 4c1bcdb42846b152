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
	"bufio"
	"os"
	"strings"
)

// cancellationMarker is the exact label value that means "this task has
// been cancelled", quotes included: the projected downward API volume
// renders label values as quoted strings.
const cancellationMarker = `"Cancelled"`

// CancellationProbe reads the pod's mounted label file each time it's
// called and reports whether any label there carries the cancellation
// marker. A missing file is treated as "not cancelled" rather than an
// error, since the volume is only projected when the pod template asks
// for it.
func CancellationProbe(path string) func() bool {
	return func() bool {
		return isCancelled(path)
	}
}

func isCancelled(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if labelIsCancelled(scanner.Text()) {
			return true
		}
	}
	return false
}

// labelIsCancelled parses one name="value" line from the label file and
// reports whether its value is the cancellation marker.
func labelIsCancelled(line string) bool {
	_, value, found := strings.Cut(line, "=")
	if !found {
		return false
	}
	return value == cancellationMarker
}
