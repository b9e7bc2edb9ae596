/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package element holds the layout elements driven by the dispatcher: a
// base Node, vertical and horizontal Stacks, text Labels and fixed Spacers.
// Every element declares its handlers once per type in init; registries are
// populated from those tables when an element is constructed.
package element

import (
	"framepass/internal/dispatch"
)

// Box is an element taking part in layout.
type Box interface {
	dispatch.Element
	Base() *Node
}

// Node is the base every element embeds. On its own it is a fixed-size leaf.
type Node struct {
	name     string
	reg      *dispatch.Registry
	children []dispatch.Element

	Padding Insets
	// Desired is the measured size including padding.
	Desired Size
	// Bounds is the arranged rectangle in root coordinates.
	Bounds Rect
	// Grow is the share of surplus space taken in a stack. 0 keeps the desired size.
	Grow float32
}

func init() {
	dispatch.Declare(func(t *dispatch.Table[*Node]) {
		t.On("node.snap", (*Node).snap, dispatch.InPass(dispatch.PassPost))
	})
}

// NewNode returns a leaf with a fixed desired size.
func NewNode(name string, size Size) *Node {
	n := &Node{name: name, Desired: size}
	n.reg = dispatch.NewRegistry(n)
	return n
}

// setup wires the registry for an embedding element. owner must embed n.
func (n *Node) setup(owner dispatch.Element, name string) {
	n.name = name
	n.reg = dispatch.NewRegistry(owner)
}

func (n *Node) Registry() *dispatch.Registry { return n.reg }
func (n *Node) Children() []dispatch.Element { return n.children }
func (n *Node) Name() string                 { return n.name }
func (n *Node) Base() *Node                  { return n }

// Add appends children in layout order.
func (n *Node) Add(children ...Box) {
	for _, c := range children {
		n.children = append(n.children, c)
	}
}

// snap rounds the arranged bounds to whole units once layout is done.
func (n *Node) snap(*dispatch.Event) { n.Bounds = n.Bounds.Snap() }

// BaseOf returns the layout state of el, if it has any.
func BaseOf(el dispatch.Element) (*Node, bool) {
	b, ok := el.(Box)
	if !ok {
		return nil, false
	}
	return b.Base(), true
}

// Walk visits el and its descendants depth-first, parents before children.
func Walk(el dispatch.Element, fn func(el dispatch.Element, depth int) error) error {
	return walk(el, 0, fn)
}

func walk(el dispatch.Element, depth int, fn func(dispatch.Element, int) error) error {
	if err := fn(el, depth); err != nil {
		return err
	}
	for _, c := range el.Children() {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}
