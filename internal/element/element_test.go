/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package element

import (
	"errors"
	"testing"

	"framepass/internal/dispatch"
)

type sample struct {
	root   *Stack
	hi     *Label
	spacer *Spacer
	row    *Stack
	abc, d *Label
}

func buildSample() sample {
	s := sample{
		root:   NewStack("root", Vertical, 1, Uniform(2)),
		hi:     NewLabel("hi", "hi", Insets{}),
		spacer: NewSpacer("gap", Size{W: 10, H: 5}, 1),
		row:    NewStack("row", Horizontal, 0, Insets{}),
		abc:    NewLabel("abc", "abc", Insets{}),
		d:      NewLabel("d", "d", Insets{}),
	}
	s.row.Add(s.abc, s.d)
	s.root.Add(s.hi, s.spacer, s.row)
	return s
}

func runPasses(t *testing.T, root dispatch.Element, force dispatch.Force, passes ...dispatch.Pass) {
	t.Helper()
	for _, p := range passes {
		if err := dispatch.Invoke(root, dispatch.NewEvent(p, dispatch.WithForce(force))); err != nil {
			t.Fatalf("Invoke %s: %v", p, err)
		}
	}
}

func TestMeasureText(t *testing.T) {
	w, h := MeasureText("abc")
	if w != 21 || h != 13 {
		t.Fatalf("MeasureText = %v x %v, want 21 x 13", w, h)
	}
}

func TestStackMeasuresAfterChildren(t *testing.T) {
	s := buildSample()
	runPasses(t, s.root, dispatch.ForceNone, dispatch.PassNormal)
	if s.row.Desired != (Size{W: 28, H: 13}) {
		t.Fatalf("row desired = %+v", s.row.Desired)
	}
	if s.root.Desired != (Size{W: 32, H: 37}) {
		t.Fatalf("root desired = %+v", s.root.Desired)
	}
}

func TestStackArrangesWithGrow(t *testing.T) {
	s := buildSample()
	runPasses(t, s.root, dispatch.ForceNone, dispatch.PassNormal)
	s.root.Bounds = R(0, 0, 40, 50)
	runPasses(t, s.root, dispatch.ForceNone, dispatch.PassLate, dispatch.PassPost)

	want := map[string]Rect{
		"hi":  R(2, 2, 36, 13),
		"gap": R(2, 16, 36, 18),
		"row": R(2, 35, 36, 13),
		"abc": R(2, 35, 21, 13),
		"d":   R(23, 35, 7, 13),
	}
	got := map[string]Rect{
		"hi": s.hi.Bounds, "gap": s.spacer.Bounds, "row": s.row.Bounds, "abc": s.abc.Bounds, "d": s.d.Bounds,
	}
	for k, w := range want {
		if got[k] != w {
			t.Fatalf("%s bounds = %+v, want %+v", k, got[k], w)
		}
	}
	v, ok := s.root.Registry().Data(dispatch.DataFill)
	if !ok || v.(*fillState).Extra != 13 || v.(*fillState).TotalGrow != 1 {
		t.Fatalf("fill state = %+v", v)
	}
}

func TestLabelRemeasuresOnlyWhenNeeded(t *testing.T) {
	s := buildSample()
	runPasses(t, s.root, dispatch.ForceNone, dispatch.PassNormal, dispatch.PassNormal)
	if s.hi.Measures != 1 {
		t.Fatalf("unchanged label measured %d times", s.hi.Measures)
	}
	s.hi.SetText("hello")
	runPasses(t, s.root, dispatch.ForceNone, dispatch.PassNormal)
	if s.hi.Measures != 2 || s.hi.Desired.W != 35 {
		t.Fatalf("changed label: measures=%d desired=%+v", s.hi.Measures, s.hi.Desired)
	}
	runPasses(t, s.root, dispatch.ForceOne, dispatch.PassNormal)
	if s.hi.Measures != 3 || s.abc.Measures != 2 {
		t.Fatalf("forced pass should re-measure: hi=%d abc=%d", s.hi.Measures, s.abc.Measures)
	}
}

func TestSnapRoundsAfterLayout(t *testing.T) {
	n := NewNode("n", Size{W: 1, H: 1})
	n.Bounds = R(0.4, 0.6, 10.2, 3.3)
	runPasses(t, n, dispatch.ForceNone, dispatch.PassPost)
	if n.Bounds != R(0, 1, 11, 3) {
		t.Fatalf("snapped bounds = %+v", n.Bounds)
	}
}

func TestSpacerCachesEmptyDeclarations(t *testing.T) {
	dispatch.ResetTypeCache()
	a := NewSpacer("a", Size{}, 0)
	NewSpacer("b", Size{}, 0)
	if got := dispatch.ScanCountOf[*Spacer](); got != 1 {
		t.Fatalf("Spacer scanned %d times", got)
	}
	lists := a.Registry().Lists()
	if len(lists) != 1 || lists[0].Pass() != dispatch.PassPost {
		t.Fatalf("spacer should only carry the inherited snap handler, got %d lists", len(lists))
	}
}

func TestStackLayoutDataIsExclusive(t *testing.T) {
	s := NewStack("s", Vertical, 0, Insets{})
	err := s.installLayout()
	if !errors.Is(err, dispatch.ErrDuplicateLayoutData) {
		t.Fatalf("expected ErrDuplicateLayoutData, got %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	late, ok := s.Registry().List(dispatch.PassLate)
	if !ok || len(late.Sublists()) != 2 {
		t.Fatalf("Reset should restore fill and arrange")
	}
	for _, sl := range late.Sublists() {
		if len(sl.Callbacks()) != 1 {
			t.Fatalf("subpass %s has %d callbacks", sl.Subpass(), len(sl.Callbacks()))
		}
	}
}

func TestWalkVisitsDepthFirst(t *testing.T) {
	s := buildSample()
	var names []string
	_ = Walk(s.root, func(el dispatch.Element, depth int) error {
		names = append(names, dispatch.ElementName(el))
		return nil
	})
	want := []string{"root", "hi", "gap", "row", "abc", "d"}
	if len(names) != len(want) {
		t.Fatalf("walk = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("walk = %v, want %v", names, want)
		}
	}
}
