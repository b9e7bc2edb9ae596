/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package report renders a laid-out element tree and its handler trace as
// a PDF document or a PNG snapshot.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"framepass/internal/dispatch"
	"framepass/internal/element"
	"framepass/internal/trace"
)

// Input is what gets rendered. Root must already be laid out.
type Input struct {
	Title  string
	Root   dispatch.Element
	Frames []trace.Frame
}

// WriteFile renders in to path, choosing the format from the extension.
func WriteFile(path string, in Input) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return WritePDF(path, in)
	case ".png":
		return WritePNG(path, in, PNGOptions{Labels: true})
	default:
		return fmt.Errorf("report: unsupported output %q (want .pdf or .png)", filepath.Ext(path))
	}
}

// box is a flattened element for drawing.
type box struct {
	name  string
	depth int
	r     element.Rect
}

func flatten(root dispatch.Element) (boxes []box, extent element.Rect) {
	first := true
	_ = element.Walk(root, func(el dispatch.Element, depth int) error {
		n, ok := element.BaseOf(el)
		if !ok {
			return nil
		}
		boxes = append(boxes, box{name: dispatch.ElementName(el), depth: depth, r: n.Bounds})
		if first {
			extent, first = n.Bounds, false
		} else {
			extent = extent.Union(n.Bounds)
		}
		return nil
	})
	return boxes, extent
}

// depthColors cycles per nesting level.
var depthColors = []color.RGBA{
	{R: 0, G: 0, B: 0, A: 255},
	{R: 200, G: 30, B: 30, A: 255},
	{R: 30, G: 120, B: 200, A: 255},
	{R: 30, G: 160, B: 60, A: 255},
	{R: 180, G: 120, B: 0, A: 255},
}

func colorFor(depth int) color.RGBA { return depthColors[depth%len(depthColors)] }
