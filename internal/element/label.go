/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package element

import (
	"framepass/internal/dispatch"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Label is a single line of text measured with the fixed 7x13 face.
type Label struct {
	Node
	text     string
	measured string
	valid    bool
	// Measures counts how often the text was actually measured.
	Measures int
}

func init() {
	dispatch.Declare(func(t *dispatch.Table[*Label]) {
		t.On("label.measure", (*Label).measure)
	})
}

func NewLabel(name, text string, padding Insets) *Label {
	l := &Label{text: text}
	l.Padding = padding
	l.setup(l, name)
	return l
}

func (l *Label) Embedded() dispatch.Element { return &l.Node }

func (l *Label) Text() string { return l.text }

// SetText changes the text; the next measure pass picks it up.
func (l *Label) SetText(s string) { l.text = s }

// measure skips unchanged text unless the event forces a re-measure.
func (l *Label) measure(ev *dispatch.Event) {
	if l.valid && l.measured == l.text && ev.Force == dispatch.ForceNone {
		return
	}
	w, h := MeasureText(l.text)
	l.Desired = Size{W: w + l.Padding.Horizontal(), H: h + l.Padding.Vertical()}
	l.measured = l.text
	l.valid = true
	l.Measures++
}

// MeasureText returns the advance width and line height of s in the 7x13 face.
func MeasureText(s string) (w, h float32) {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	w = float32(d.MeasureString(s).Round())
	h = float32(face.Metrics().Height.Round())
	return w, h
}
