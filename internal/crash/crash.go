/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns an unrecovered panic into a report file and a clean exit.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "gofountain/internal/log"
	"gofountain/internal/telemetry"
	"gofountain/internal/version"
)

// ExitCode is the process status after a recovered panic.
const ExitCode = 2

var (
	exitFn           = os.Exit
	stderr io.Writer = os.Stderr
	now              = time.Now
)

// Recover captures a panic, logs it with its stack, writes crash-<stamp>.log
// into dir (the temp dir when dir is empty or unwritable), and exits with ExitCode.
//
// Usage: defer crash.Recover(dir)
func Recover(dir string) {
	if r := recover(); r != nil {
		Handle(r, dir)
	}
}

// Handle does the work of Recover for a value the caller already recovered,
// for callers that only know dir once the panic has happened.
func Handle(r any, dir string) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	report := Report(r, stack, os.Args)
	path, err := writeReport(dir, report)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err), slog.String("path", path))
	}
	telemetry.UploadCrash(report)

	_, _ = fmt.Fprintf(stderr, "gofountain crashed: %v\n", r)
	if err == nil {
		_, _ = fmt.Fprintf(stderr, "A crash report was saved to: %s\n", path)
	}
	applog.Close()
	exitFn(ExitCode)
}

// Report formats a crash report.
func Report(panicVal any, stack []byte, args []string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "gofountain crash report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s (%s)\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	if len(args) > 0 {
		fmt.Fprintf(&buf, "Command: %s\n", strings.Join(args, " "))
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

func writeReport(dir string, report []byte) (string, error) {
	name := fmt.Sprintf("crash-%s.log", now().Format("20060102-150405"))
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, report, 0o644); err == nil {
				return path, nil
			}
		}
	}
	path := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return path, err
	}
	return path, nil
}
