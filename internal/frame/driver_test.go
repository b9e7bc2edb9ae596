/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package frame

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"framepass/internal/dispatch"
	"framepass/internal/element"
	"framepass/internal/trace"
	"framepass/internal/tracestore"
)

func sampleTree() (*element.Stack, *element.Label) {
	root := element.NewStack("root", element.Vertical, 0, element.Uniform(1))
	title := element.NewLabel("title", "hello", element.Insets{})
	row := element.NewStack("row", element.Horizontal, 2, element.Insets{})
	row.Add(element.NewLabel("ok", "OK", element.Insets{}), element.NewSpacer("sp", element.Size{W: 1, H: 1}, 1))
	root.Add(title, row)
	return root, title
}

func handlers(f trace.Frame) []string {
	var out []string
	for _, s := range f.Steps {
		out = append(out, s.Element+"."+s.Handler)
	}
	return out
}

func TestTickRunsConfiguredPasses(t *testing.T) {
	root, title := sampleTree()
	d := New(root, Options{Viewport: element.Size{W: 100, H: 50}})
	f, err := d.Tick(context.Background(), dispatch.ForceNone)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	got := strings.Join(handlers(f), " ")
	want := strings.Join([]string{
		// normal: children first
		"title.label.measure", "ok.label.measure", "row.stack.measure", "root.stack.measure",
		// late: parents first
		"root.stack.fill", "root.stack.arrange", "row.stack.fill", "row.stack.arrange",
		// post: snap after children
		"title.node.snap", "ok.node.snap", "sp.node.snap", "row.node.snap", "root.node.snap",
	}, " ")
	if got != want {
		t.Fatalf("steps\n got: %s\nwant: %s", got, want)
	}
	if f.Number != 1 || f.Root != "root" || f.Cancelled {
		t.Fatalf("frame header = %+v", f)
	}
	if root.Bounds != element.R(0, 0, 100, 50) {
		t.Fatalf("root bounds = %+v", root.Bounds)
	}
	if title.Bounds != element.R(1, 1, 98, 13) {
		t.Fatalf("title bounds = %+v", title.Bounds)
	}
	if last, ok := d.History().Last("root"); !ok || last.ID != f.ID {
		t.Fatalf("frame not pushed to history")
	}
}

func TestTickWithoutViewportUsesDesiredSize(t *testing.T) {
	root, _ := sampleTree()
	d := New(root, Options{})
	if _, err := d.Tick(context.Background(), dispatch.ForceNone); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if root.Bounds.Size() != root.Desired {
		t.Fatalf("root bounds %+v, desired %+v", root.Bounds, root.Desired)
	}
}

func TestSecondTickSkipsUnchangedLabels(t *testing.T) {
	root, title := sampleTree()
	d := New(root, Options{Passes: []dispatch.Pass{dispatch.PassNormal}})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := d.Tick(ctx, dispatch.ForceNone); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if title.Measures != 1 {
		t.Fatalf("title measured %d times", title.Measures)
	}
	if _, err := d.Tick(ctx, dispatch.ForceOne); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if title.Measures != 2 || d.Frames() != 4 {
		t.Fatalf("forced tick: measures=%d frames=%d", title.Measures, d.Frames())
	}
}

func TestCancelledTickIsRecorded(t *testing.T) {
	root, title := sampleTree()
	title.Registry().Handle(dispatch.PassLate, dispatch.SubpassBeforeChildren, "title.abort", func(ev *dispatch.Event) {
		if err := ev.Cancel(); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	})
	d := New(root, Options{})
	f, err := d.Tick(context.Background(), dispatch.ForceNone)
	if !errors.Is(err, dispatch.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !f.Cancelled {
		t.Fatalf("frame should be marked cancelled")
	}
	last := f.Steps[len(f.Steps)-1]
	if last.Handler != "title.abort" {
		t.Fatalf("last step = %+v", last)
	}
	for _, s := range f.Steps {
		if s.Pass == dispatch.PassPost {
			t.Fatalf("post pass ran after cancellation")
		}
	}
	if !strings.Contains(d.LastFrame(), "cancelled") {
		t.Fatalf("LastFrame = %q", d.LastFrame())
	}
}

func TestRelayoutForcesEveryElement(t *testing.T) {
	root, title := sampleTree()
	d := New(root, Options{Viewport: element.Size{W: 80, H: 40}})
	ctx := context.Background()
	if _, err := d.Tick(ctx, dispatch.ForceNone); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	f, err := d.Relayout(ctx)
	if err != nil {
		t.Fatalf("Relayout: %v", err)
	}
	if title.Measures != 2 {
		t.Fatalf("relayout should force a re-measure, got %d", title.Measures)
	}
	steps := handlers(f)
	if steps[0] != "title.label.measure" || steps[1] != "title.node.snap" {
		t.Fatalf("relayout should start with the first leaf's handlers: %v", steps)
	}
	if title.Bounds != element.R(1, 1, 78, 13) {
		t.Fatalf("title bounds after relayout = %+v", title.Bounds)
	}
}

func TestDriverStoresFramesAndDumpsHistory(t *testing.T) {
	store, err := tracestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	root, _ := sampleTree()
	d := New(root, Options{Sink: store, CrashDir: "/tmp/fp-crash"})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := d.Tick(ctx, dispatch.ForceNone); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Fatalf("stored frames = %d", n)
	}
	var buf bytes.Buffer
	if err := d.WriteFrames(&buf); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	var dumped []trace.Frame
	if err := json.Unmarshal(buf.Bytes(), &dumped); err != nil || len(dumped) != 2 {
		t.Fatalf("dump = %d frames, %v", len(dumped), err)
	}
	if d.CrashDir() != "/tmp/fp-crash" || !strings.HasPrefix(d.LastFrame(), "frame 2 root=root") {
		t.Fatalf("crash source: dir=%q last=%q", d.CrashDir(), d.LastFrame())
	}
}

func TestTickHonoursContext(t *testing.T) {
	root, _ := sampleTree()
	d := New(root, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f, err := d.Tick(ctx, dispatch.ForceNone)
	if !errors.Is(err, context.Canceled) || len(f.Steps) != 0 {
		t.Fatalf("Tick on cancelled ctx = %d steps, %v", len(f.Steps), err)
	}
}
