/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package element

// Basic 2D geometry for layout. float32 throughout, like the rest of the
// layout code.

import "math"

// Size is a width/height pair.
type Size struct{ W, H float32 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float32
	W, H float32
}

func R(x, y, w, h float32) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

// Deflate shrinks r by the given insets (negative insets grow).
func (r Rect) Deflate(in Insets) Rect {
	return Rect{X: r.X + in.Left, Y: r.Y + in.Top, W: r.W - in.Horizontal(), H: r.H - in.Vertical()}
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := min(r.X, o.X)
	minY := min(r.Y, o.Y)
	maxX := max(r.X+r.W, o.X+o.W)
	maxY := max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Snap rounds every edge to whole units.
func (r Rect) Snap() Rect {
	x0, y0 := round(r.X), round(r.Y)
	x1, y1 := round(r.X+r.W), round(r.Y+r.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Insets are per-edge paddings.
type Insets struct{ Top, Right, Bottom, Left float32 }

// Uniform returns insets of v on every edge.
func Uniform(v float32) Insets { return Insets{Top: v, Right: v, Bottom: v, Left: v} }

func (in Insets) Horizontal() float32 { return in.Left + in.Right }
func (in Insets) Vertical() float32   { return in.Top + in.Bottom }

func round(v float32) float32 { return float32(math.Round(float64(v))) }
