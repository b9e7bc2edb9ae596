/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dispatch

import (
	"errors"
	"math/rand"
	"testing"
)

// testNode is a minimal element used across the package tests.
type testNode struct {
	name string
	reg  *Registry
	kids []Element
	log  *[]string
}

func newTestNode(name string, log *[]string, kids ...*testNode) *testNode {
	n := &testNode{name: name, log: log}
	n.reg = NewRegistry(n)
	for _, k := range kids {
		n.kids = append(n.kids, k)
	}
	return n
}

func (n *testNode) Registry() *Registry { return n.reg }
func (n *testNode) Children() []Element { return n.kids }
func (n *testNode) Name() string        { return n.name }

// record returns a callback appending label to the node's log.
func (n *testNode) record(label string) *Callback {
	return NewCallback(label, func(ev *Event) { *n.log = append(*n.log, label) })
}

func TestCanonicalOrdering(t *testing.T) {
	passes := []Pass{PassPre, PassNormal, PassLate, PassPost, PassForce}
	for i := 1; i < len(passes); i++ {
		if !(passes[i-1] < passes[i]) {
			t.Fatalf("pass %s not before %s", passes[i-1], passes[i])
		}
		if passes[i]-passes[i-1] < 2 {
			t.Fatalf("no room for custom passes between %s and %s", passes[i-1], passes[i])
		}
	}
	subs := []Subpass{SubpassPre, SubpassBeforeChildren, SubpassAfterChildren, SubpassLate, SubpassPost, SubpassForce}
	for i := 1; i < len(subs); i++ {
		if !(subs[i-1] < subs[i]) {
			t.Fatalf("subpass %s not before %s", subs[i-1], subs[i])
		}
	}
	if SubpassBeforeChildren.AfterChildren() || !SubpassAfterChildren.AfterChildren() || !SubpassPost.AfterChildren() {
		t.Fatalf("AfterChildren threshold misplaced")
	}
}

func TestParsePass(t *testing.T) {
	cases := map[string]Pass{"pre": PassPre, "Normal": PassNormal, " late ": PassLate, "post": PassPost, "force": PassForce, "1500": Pass(1500), "-3": Pass(-3)}
	for in, want := range cases {
		got, ok := ParsePass(in)
		if !ok || got != want {
			t.Fatalf("ParsePass(%q) = %v,%v want %v", in, got, ok, want)
		}
	}
	if _, ok := ParsePass("sideways"); ok {
		t.Fatalf("ParsePass accepted garbage")
	}
	if Pass(1500).String() != "1500" || PassLate.String() != "late" {
		t.Fatalf("unexpected pass names")
	}
}

func TestSortedInsertionArbitraryOrder(t *testing.T) {
	var log []string
	n := newTestNode("n", &log)
	passes := []Pass{PassPost, PassPre, 1500, PassNormal, PassForce, PassLate, -5, 1500, PassNormal}
	subs := []Subpass{SubpassPost, SubpassAfterChildren, SubpassPre, 1500, SubpassBeforeChildren, SubpassLate, SubpassAfterChildren}
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 3; round++ {
		rng.Shuffle(len(passes), func(i, j int) { passes[i], passes[j] = passes[j], passes[i] })
		for _, p := range passes {
			rng.Shuffle(len(subs), func(i, j int) { subs[i], subs[j] = subs[j], subs[i] })
			for _, s := range subs {
				n.reg.Add(p, s, n.record("x"))
			}
		}
	}

	lists := n.reg.Lists()
	if len(lists) != 7 {
		t.Fatalf("expected 7 distinct passes, got %d", len(lists))
	}
	for i := 1; i < len(lists); i++ {
		if !(lists[i-1].Pass() < lists[i].Pass()) {
			t.Fatalf("lists not strictly ascending at %d: %s, %s", i, lists[i-1].Pass(), lists[i].Pass())
		}
	}
	for _, l := range lists {
		sls := l.Sublists()
		if len(sls) != 6 {
			t.Fatalf("pass %s: expected 6 distinct subpasses, got %d", l.Pass(), len(sls))
		}
		for i := 1; i < len(sls); i++ {
			if !(sls[i-1].Subpass() < sls[i].Subpass()) {
				t.Fatalf("pass %s: sublists not strictly ascending", l.Pass())
			}
		}
	}

	// Existing keys are returned, not recreated.
	before := n.reg.GetOrCreateSublist(PassLate, SubpassLate)
	if again := n.reg.GetOrCreateSublist(PassLate, SubpassLate); again != before {
		t.Fatalf("GetOrCreateSublist created a duplicate")
	}
	if l1, l2 := n.reg.GetOrCreateList(1500), n.reg.GetOrCreateList(1500); l1 != l2 || len(n.reg.Lists()) != 7 {
		t.Fatalf("GetOrCreateList created a duplicate")
	}
}

func TestRegistrationOrderPreserved(t *testing.T) {
	var log []string
	n := newTestNode("n", &log)
	for _, label := range []string{"a", "b", "c", "d"} {
		n.reg.Add(PassNormal, SubpassBeforeChildren, n.record(label))
	}
	if err := Invoke(n, NewEvent(PassNormal)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	assertLog(t, log, "a", "b", "c", "d")
}

func TestAddUniqueAndRemove(t *testing.T) {
	var log []string
	n := newTestNode("n", &log)
	cb := n.record("x")
	n.reg.Add(PassNormal, SubpassLate, cb)
	n.reg.Add(PassNormal, SubpassLate, cb)
	n.reg.AddUnique(PassNormal, SubpassLate, cb)
	sl, _ := n.reg.GetOrCreateList(PassNormal).Sublist(SubpassLate)
	if got := len(sl.Callbacks()); got != 2 {
		t.Fatalf("expected duplicates via Add and none via AddUnique, got %d", got)
	}
	// AddUnique only looks at the exact bucket.
	n.reg.AddUnique(PassNormal, SubpassPost, cb)
	if sl, _ := n.reg.GetOrCreateList(PassNormal).Sublist(SubpassPost); len(sl.Callbacks()) != 1 {
		t.Fatalf("AddUnique should add to a different bucket")
	}

	if !n.reg.Remove(PassNormal, SubpassLate, cb) {
		t.Fatalf("Remove reported no match")
	}
	if got := len(sl.Callbacks()); got != 1 {
		t.Fatalf("Remove should drop only the first match, %d left", got)
	}
	if n.reg.Remove(PassLate, SubpassLate, cb) || n.reg.Remove(PassNormal, SubpassForce, cb) {
		t.Fatalf("Remove on absent bucket should be a no-op")
	}
	if n.reg.Remove(PassNormal, SubpassLate, n.record("other")) {
		t.Fatalf("Remove matched an unrelated callback")
	}
}

func TestAddWithDataRejectsDuplicate(t *testing.T) {
	var log []string
	n := newTestNode("n", &log)
	first := &struct{ weight float32 }{1}
	if err := n.reg.AddWithData(PassLate, SubpassPre, n.record("fill"), DataFill, first); err != nil {
		t.Fatalf("first AddWithData: %v", err)
	}
	err := n.reg.AddWithData(PassLate, SubpassPre, n.record("fill2"), DataFill, "second")
	if !errors.Is(err, ErrDuplicateLayoutData) {
		t.Fatalf("expected ErrDuplicateLayoutData, got %v", err)
	}
	if v, ok := n.reg.Data(DataFill); !ok || v != first {
		t.Fatalf("first entry was replaced: %v", v)
	}
	sl, _ := n.reg.GetOrCreateList(PassLate).Sublist(SubpassPre)
	if len(sl.Callbacks()) != 1 {
		t.Fatalf("rejected registration must not add its callback")
	}
	if err := n.reg.AddWithData(PassLate, SubpassPre, n.record("pos"), DataPositioner, 3); err != nil {
		t.Fatalf("other tag should be accepted: %v", err)
	}
}

func TestClearDropsEverything(t *testing.T) {
	var log []string
	n := newTestNode("n", &log)
	n.reg.Add(PassNormal, SubpassLate, n.record("x"))
	_ = n.reg.AddWithData(PassLate, SubpassPre, n.record("y"), DataFill, 1)
	if err := Invoke(n, NewEvent(PassNormal)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	n.reg.Clear()
	if len(n.reg.Lists()) != 0 || len(n.reg.PassesApplied()) != 0 {
		t.Fatalf("Clear left lists or applied passes behind")
	}
	if _, ok := n.reg.Data(DataFill); ok {
		t.Fatalf("Clear left auxiliary data behind")
	}
}

func assertLog(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}
