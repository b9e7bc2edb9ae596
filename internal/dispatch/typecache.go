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
	"reflect"
	"sync"
)

// binding is one declared (pass, subpass, method) triple of a type.
type binding struct {
	name    string
	pass    Pass
	subpass Subpass
	bind    func(el Element) func(*Event)
}

// typeCache maps concrete element types to their declared bindings. The
// declaration of a type runs at most once until ResetTypeCache.
type typeCache struct {
	mu    sync.RWMutex
	decls map[reflect.Type]func() []binding
	cache map[reflect.Type][]binding
	scans map[reflect.Type]int
}

var types = &typeCache{
	decls: make(map[reflect.Type]func() []binding),
	cache: make(map[reflect.Type][]binding),
	scans: make(map[reflect.Type]int),
}

// TagOption adjusts the pass/subpass a method is declared for.
type TagOption func(*tag)

type tag struct {
	pass    Pass
	subpass Subpass
}

// InPass sets the pass of a declared method. Default PassNormal.
func InPass(p Pass) TagOption { return func(t *tag) { t.pass = p } }

// InSubpass sets the subpass of a declared method. Default SubpassAfterChildren.
func InSubpass(s Subpass) TagOption { return func(t *tag) { t.subpass = s } }

// Table collects the handler declarations of element type T.
type Table[T Element] struct {
	typ      reflect.Type
	bindings []binding
}

// On declares method as a handler of T. Declarations of one type are
// registered in the order they are made.
func (t *Table[T]) On(name string, method func(T, *Event), opts ...TagOption) {
	if name == "" || method == nil {
		panic(fmt.Errorf("%w: %s: handler %q has no method", ErrInvalidBinding, t.typ, name))
	}
	tg := tag{pass: PassNormal, subpass: SubpassAfterChildren}
	for _, o := range opts {
		o(&tg)
	}
	t.bindings = append(t.bindings, binding{
		name:    name,
		pass:    tg.pass,
		subpass: tg.subpass,
		bind: func(el Element) func(*Event) {
			recv, ok := el.(T)
			if !ok {
				panic(fmt.Errorf("%w: %T is not %s", ErrInvalidBinding, el, t.typ))
			}
			return func(ev *Event) { method(recv, ev) }
		},
	})
}

// Declare registers the handler table of element type T. It is meant to be
// called from package init; declare runs lazily, once, when the first
// registry for a T is built, and must not call Declare itself.
// Declaring the same type twice panics.
func Declare[T Element](declare func(t *Table[T])) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if declare == nil {
		panic(fmt.Errorf("%w: %s: nil declaration", ErrInvalidBinding, typ))
	}
	types.mu.Lock()
	defer types.mu.Unlock()
	if _, dup := types.decls[typ]; dup {
		panic(fmt.Errorf("%w: %s declared twice", ErrInvalidBinding, typ))
	}
	types.decls[typ] = func() []binding {
		t := &Table[T]{typ: typ}
		declare(t)
		return t.bindings
	}
}

func (c *typeCache) bindingsFor(typ reflect.Type) []binding {
	c.mu.RLock()
	bs, ok := c.cache[typ]
	c.mu.RUnlock()
	if ok {
		return bs
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if bs, ok := c.cache[typ]; ok {
		return bs
	}
	if decl, ok := c.decls[typ]; ok {
		bs = decl()
	}
	c.cache[typ] = bs
	c.scans[typ]++
	return bs
}

// autoRegister binds the declared handlers of the owner's type chain,
// most-derived type first.
func (r *Registry) autoRegister() {
	el := r.owner
	for el != nil {
		typ := reflect.TypeOf(el)
		for _, b := range types.bindingsFor(typ) {
			r.Add(b.pass, b.subpass, &Callback{Name: b.name, Fn: b.bind(el)})
		}
		emb, ok := el.(Embedder)
		if !ok {
			return
		}
		next := emb.Embedded()
		if next == nil || reflect.TypeOf(next) == typ {
			return
		}
		el = next
	}
}

// ScanCount reports how many times the declarations of typ were evaluated
// since the last ResetTypeCache.
func ScanCount(typ reflect.Type) int {
	types.mu.RLock()
	defer types.mu.RUnlock()
	return types.scans[typ]
}

// ScanCountOf is ScanCount for a static type.
func ScanCountOf[T Element]() int { return ScanCount(reflect.TypeOf((*T)(nil)).Elem()) }

// CachedTypes returns the number of types with a populated cache entry.
func CachedTypes() int {
	types.mu.RLock()
	defer types.mu.RUnlock()
	return len(types.cache)
}

// ResetTypeCache drops every cached binding list and scan counter.
// Declarations stay registered.
func ResetTypeCache() {
	types.mu.Lock()
	defer types.mu.Unlock()
	types.cache = make(map[reflect.Type][]binding)
	types.scans = make(map[reflect.Type]int)
}
