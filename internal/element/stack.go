/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package element

import (
	"fmt"

	"framepass/internal/dispatch"
)

// Axis is the main direction of a Stack.
type Axis uint8

const (
	Vertical Axis = iota
	Horizontal
)

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// Stack lays children out one after another along its axis and stretches
// them across it.
//
// Passes:
//   - normal/after_children: measure from the already measured children
//   - late/pre: resolve how surplus space is split (DataFill)
//   - late/before_children: place children (DataPositioner), which then lay
//     out their own subtrees
type Stack struct {
	Node
	Axis Axis
	Gap  float32
}

// fillState is the surplus along the axis and how it is shared.
type fillState struct {
	Extra     float32
	TotalGrow float32
}

// positioner places children one after another.
type positioner struct {
	cursor float32
}

func init() {
	dispatch.Declare(func(t *dispatch.Table[*Stack]) {
		t.On("stack.measure", (*Stack).measure)
	})
}

// NewStack builds a stack. The fill and arrange handlers carry per-instance
// state and are registered here rather than declared.
func NewStack(name string, axis Axis, gap float32, padding Insets) *Stack {
	s := &Stack{Axis: axis, Gap: gap}
	s.Padding = padding
	s.setup(s, name)
	if err := s.installLayout(); err != nil {
		panic(fmt.Errorf("element: %s: %w", name, err))
	}
	return s
}

func (s *Stack) Embedded() dispatch.Element { return &s.Node }

func (s *Stack) installLayout() error {
	fill := dispatch.NewCallback("stack.fill", s.fill)
	if err := s.reg.AddWithData(dispatch.PassLate, dispatch.SubpassPre, fill, dispatch.DataFill, &fillState{}); err != nil {
		return err
	}
	arrange := dispatch.NewCallback("stack.arrange", s.arrange)
	return s.reg.AddWithData(dispatch.PassLate, dispatch.SubpassBeforeChildren, arrange, dispatch.DataPositioner, &positioner{})
}

// Reset restores the declared handlers and the layout handlers.
func (s *Stack) Reset() error {
	s.reg.Reset()
	return s.installLayout()
}

// main and cross split a size along the stack's axis.
func (s *Stack) main(sz Size) float32 {
	if s.Axis == Horizontal {
		return sz.W
	}
	return sz.H
}

func (s *Stack) cross(sz Size) float32 {
	if s.Axis == Horizontal {
		return sz.H
	}
	return sz.W
}

func (s *Stack) size(main, cross float32) Size {
	if s.Axis == Horizontal {
		return Size{W: main, H: cross}
	}
	return Size{W: cross, H: main}
}

func (s *Stack) boxes() []*Node {
	out := make([]*Node, 0, len(s.children))
	for _, c := range s.children {
		if b, ok := BaseOf(c); ok {
			out = append(out, b)
		}
	}
	return out
}

func (s *Stack) measure(*dispatch.Event) {
	var main, cross float32
	kids := s.boxes()
	for i, b := range kids {
		if i > 0 {
			main += s.Gap
		}
		main += s.main(b.Desired)
		cross = max(cross, s.cross(b.Desired))
	}
	in := s.size(main, cross)
	s.Desired = Size{W: in.W + s.Padding.Horizontal(), H: in.H + s.Padding.Vertical()}
}

func (s *Stack) fill(*dispatch.Event) {
	v, _ := s.reg.Data(dispatch.DataFill)
	st := v.(*fillState)
	st.Extra = max(0, s.main(s.Bounds.Size())-s.main(s.Desired))
	st.TotalGrow = 0
	for _, b := range s.boxes() {
		st.TotalGrow += b.Grow
	}
}

func (s *Stack) arrange(*dispatch.Event) {
	v, _ := s.reg.Data(dispatch.DataFill)
	st := v.(*fillState)
	v, _ = s.reg.Data(dispatch.DataPositioner)
	pos := v.(*positioner)

	inner := s.Bounds.Deflate(s.Padding)
	pos.cursor = 0
	for i, b := range s.boxes() {
		if i > 0 {
			pos.cursor += s.Gap
		}
		extent := s.main(b.Desired)
		if st.TotalGrow > 0 && b.Grow > 0 {
			extent += st.Extra * b.Grow / st.TotalGrow
		}
		if s.Axis == Horizontal {
			b.Bounds = Rect{X: inner.X + pos.cursor, Y: inner.Y, W: extent, H: inner.H}
		} else {
			b.Bounds = Rect{X: inner.X, Y: inner.Y + pos.cursor, W: inner.W, H: extent}
		}
		pos.cursor += extent
	}
}
