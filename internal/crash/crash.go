/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file plus a dump of the most
// recent dispatch frames.
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
	"time"

	applog "framepass/internal/log"
	"framepass/internal/telemetry"
	"framepass/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Source supplies crash context. The frame driver implements it.
type Source interface {
	// CrashDir is where reports go. Empty means os.TempDir().
	CrashDir() string
	// LastFrame summarizes the most recent frame in one line.
	LastFrame() string
	// WriteFrames dumps the retained frame history.
	WriteFrames(w io.Writer) error
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and dumps the frame history of src (if provided).
//
// Usage: defer crash.Recover(src)
func Recover(src Source) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(src, r, stack)
		if src != nil {
			if path, err := writeFrames(src); err != nil {
				l.Error("frame dump failed", slog.Any("err", err))
			} else {
				l.Info("frame dump written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

func reportDir(src Source) string {
	if src != nil && src.CrashDir() != "" {
		dir := src.CrashDir()
		_ = os.MkdirAll(dir, 0o755)
		return dir
	}
	return os.TempDir()
}

func writeReport(src Source, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(src), fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "framepass Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if src != nil {
		if last := src.LastFrame(); last != "" {
			_, _ = fmt.Fprintf(&buf, "LastFrame: %s\n", last)
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// opt-in via env
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}

func writeFrames(src Source) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(src), fmt.Sprintf("frames-%s.json", stamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if err := src.WriteFrames(f); err != nil {
		_ = f.Close()
		return path, err
	}
	return path, f.Close()
}
