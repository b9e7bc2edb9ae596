/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dispatch

import (
	"fmt"
	"sort"
)

// Element is a node of the dispatched tree. Children must not be mutated by a
// handler while that handler's pass runs on the same node.
type Element interface {
	Registry() *Registry
	Children() []Element
}

// Embedder is implemented by elements that embed an ancestor element type.
// Auto-registration walks the chain most-derived first.
type Embedder interface {
	Embedded() Element
}

// DataTag keys the auxiliary per-element data used by layout algorithms.
type DataTag uint8

const (
	DataFill DataTag = iota + 1
	DataPositioner
)

func (t DataTag) String() string {
	switch t {
	case DataFill:
		return "fill"
	case DataPositioner:
		return "positioner"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Callback is a registered handler. Identity is by pointer.
type Callback struct {
	Name string
	Fn   func(ev *Event)
}

// NewCallback wraps fn under name.
func NewCallback(name string, fn func(ev *Event)) *Callback {
	return &Callback{Name: name, Fn: fn}
}

// HandlerSublist holds the callbacks of one subpass in invocation order.
type HandlerSublist struct {
	subpass   Subpass
	callbacks []*Callback
}

func (s *HandlerSublist) Subpass() Subpass { return s.subpass }

// Callbacks returns the registered callbacks. Callers must not modify the slice.
func (s *HandlerSublist) Callbacks() []*Callback { return s.callbacks }

func (s *HandlerSublist) contains(cb *Callback) bool {
	for _, c := range s.callbacks {
		if c == cb {
			return true
		}
	}
	return false
}

// HandlerList holds the sublists of one pass, ascending by subpass.
type HandlerList struct {
	pass      Pass
	sublists  []*HandlerSublist
	bySubpass map[Subpass]*HandlerSublist
}

func (l *HandlerList) Pass() Pass { return l.pass }

// Sublists returns the sublists ascending by subpass. Callers must not modify the slice.
func (l *HandlerList) Sublists() []*HandlerSublist { return l.sublists }

// Sublist returns the sublist for subpass, if any.
func (l *HandlerList) Sublist(s Subpass) (*HandlerSublist, bool) {
	sl, ok := l.bySubpass[s]
	return sl, ok
}

func (l *HandlerList) getOrCreate(s Subpass) *HandlerSublist {
	if sl, ok := l.bySubpass[s]; ok {
		return sl
	}
	sl := &HandlerSublist{subpass: s}
	i := sort.Search(len(l.sublists), func(i int) bool { return l.sublists[i].subpass > s })
	l.sublists = append(l.sublists, nil)
	copy(l.sublists[i+1:], l.sublists[i:])
	l.sublists[i] = sl
	l.bySubpass[s] = sl
	return sl
}

// Registry is the per-element handler index. It is owned by exactly one
// element and is not safe for concurrent use.
type Registry struct {
	owner   Element
	lists   []*HandlerList
	byPass  map[Pass]*HandlerList
	data    map[DataTag]any
	applied map[Pass]struct{}
}

// NewRegistry creates the registry for owner and replays the declared
// handlers of owner's type chain.
func NewRegistry(owner Element) *Registry {
	r := &Registry{owner: owner}
	r.init()
	r.autoRegister()
	return r
}

func (r *Registry) init() {
	r.lists = nil
	r.byPass = make(map[Pass]*HandlerList)
	r.data = make(map[DataTag]any)
	r.applied = make(map[Pass]struct{})
}

// Owner returns the element the registry belongs to.
func (r *Registry) Owner() Element { return r.owner }

// GetOrCreateList returns the list for pass, inserting it in order if absent.
func (r *Registry) GetOrCreateList(p Pass) *HandlerList {
	if l, ok := r.byPass[p]; ok {
		return l
	}
	l := &HandlerList{pass: p, bySubpass: make(map[Subpass]*HandlerSublist)}
	i := sort.Search(len(r.lists), func(i int) bool { return r.lists[i].pass > p })
	r.lists = append(r.lists, nil)
	copy(r.lists[i+1:], r.lists[i:])
	r.lists[i] = l
	r.byPass[p] = l
	return l
}

// GetOrCreateSublist returns the sublist for (pass, subpass), creating both levels as needed.
func (r *Registry) GetOrCreateSublist(p Pass, s Subpass) *HandlerSublist {
	return r.GetOrCreateList(p).getOrCreate(s)
}

// List returns the list for pass, if any handler was ever registered for it.
func (r *Registry) List(p Pass) (*HandlerList, bool) {
	l, ok := r.byPass[p]
	return l, ok
}

// Lists returns all lists ascending by pass. Callers must not modify the slice.
func (r *Registry) Lists() []*HandlerList { return r.lists }

// Add appends cb to the (pass, subpass) bucket. Duplicates are allowed.
func (r *Registry) Add(p Pass, s Subpass, cb *Callback) {
	sl := r.GetOrCreateSublist(p, s)
	sl.callbacks = append(sl.callbacks, cb)
}

// AddUnique appends cb unless it is already present in that exact bucket.
func (r *Registry) AddUnique(p Pass, s Subpass, cb *Callback) {
	sl := r.GetOrCreateSublist(p, s)
	if sl.contains(cb) {
		return
	}
	sl.callbacks = append(sl.callbacks, cb)
}

// AddWithData registers cb together with one auxiliary value under tag.
// A tag may carry at most one value per registry; on conflict nothing is
// registered and the existing value is kept.
func (r *Registry) AddWithData(p Pass, s Subpass, cb *Callback, tag DataTag, data any) error {
	if _, ok := r.data[tag]; ok {
		return fmt.Errorf("%w: tag %s", ErrDuplicateLayoutData, tag)
	}
	r.data[tag] = data
	r.Add(p, s, cb)
	return nil
}

// Handle is a shorthand for Add(p, s, NewCallback(name, fn)); it returns the
// callback so it can be removed later.
func (r *Registry) Handle(p Pass, s Subpass, name string, fn func(ev *Event)) *Callback {
	cb := NewCallback(name, fn)
	r.Add(p, s, cb)
	return cb
}

// Remove drops the first occurrence of cb from the bucket. Empty buckets are kept.
func (r *Registry) Remove(p Pass, s Subpass, cb *Callback) bool {
	l, ok := r.byPass[p]
	if !ok {
		return false
	}
	sl, ok := l.bySubpass[s]
	if !ok {
		return false
	}
	for i, c := range sl.callbacks {
		if c == cb {
			sl.callbacks = append(sl.callbacks[:i:i], sl.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

// Data returns the auxiliary value stored under tag.
func (r *Registry) Data(tag DataTag) (any, bool) {
	v, ok := r.data[tag]
	return v, ok
}

// Applied reports whether pass has completed at least once on this element.
func (r *Registry) Applied(p Pass) bool {
	_, ok := r.applied[p]
	return ok
}

// PassesApplied returns the completed passes in ascending order.
func (r *Registry) PassesApplied() []Pass {
	out := make([]Pass, 0, len(r.applied))
	for p := range r.applied {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) markApplied(p Pass) { r.applied[p] = struct{}{} }

// Clear drops all lists, auxiliary data and applied passes.
func (r *Registry) Clear() { r.init() }

// Reset clears the registry and replays the declared handlers.
func (r *Registry) Reset() {
	r.init()
	r.autoRegister()
}
