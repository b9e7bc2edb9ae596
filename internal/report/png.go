/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PNGOptions controls the snapshot. Scale defaults to 1, Margin to 8px.
type PNGOptions struct {
	Scale  float64
	Margin int
	Labels bool
}

// WritePNG draws element bounds (and optionally names) into a PNG.
func WritePNG(outPath string, in Input, opt PNGOptions) error {
	img := Snapshot(in, opt)
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// Snapshot renders the laid-out tree into an image.
func Snapshot(in Input, opt PNGOptions) *image.RGBA {
	if opt.Scale <= 0 {
		opt.Scale = 1
	}
	if opt.Margin <= 0 {
		opt.Margin = 8
	}
	boxes, extent := flatten(in.Root)
	pixW := int(math.Round(float64(extent.W)*opt.Scale)) + 2*opt.Margin
	pixH := int(math.Round(float64(extent.H)*opt.Scale)) + 2*opt.Margin

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	px := func(v, origin float32) int {
		return opt.Margin + int(math.Round(float64(v-origin)*opt.Scale))
	}
	for _, b := range boxes {
		x0, y0 := px(b.r.X, extent.X), px(b.r.Y, extent.Y)
		x1 := px(b.r.X+b.r.W, extent.X) - 1
		y1 := px(b.r.Y+b.r.H, extent.Y) - 1
		if x1 < x0 || y1 < y0 {
			continue
		}
		c := colorFor(b.depth)
		strokeRect(img, x0, y0, x1, y1, c)
		if opt.Labels {
			drawLabel(img, x0+2, y0+11, b.name, c)
		}
	}
	return img
}

func drawLabel(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}
