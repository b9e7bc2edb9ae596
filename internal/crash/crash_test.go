/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"strings"
	"testing"
)

type fakeSource struct {
	dir  string
	last string
}

func (f fakeSource) CrashDir() string  { return f.dir }
func (f fakeSource) LastFrame() string { return f.last }
func (f fakeSource) WriteFrames(w io.Writer) error {
	_, err := io.WriteString(w, `[{"number":1}]`)
	return err
}

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "framepass Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
	if strings.Contains(s, "LastFrame:") {
		t.Fatalf("no source, no last frame line expected")
	}
}

func TestWriteReportIncludesLastFrame(t *testing.T) {
	dir := t.TempDir()
	src := fakeSource{dir: dir, last: "frame 3 root=window steps=12"}
	path, err := writeReport(src, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("expected crash report under %s, got %s", dir, path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "LastFrame: frame 3 root=window steps=12") {
		t.Fatalf("last frame missing: %s", b)
	}
}
