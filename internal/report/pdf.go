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

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin = 36.0
	pdfPageW  = 595.0 // A4 in points
	pdfPageH  = 842.0
)

// WritePDF writes a geometry page followed by the handler trace.
func WritePDF(outPath string, in Input) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pdfPageW, Ht: pdfPageH},
	})
	pdf.SetTitle(fmt.Sprintf("%s layout report", in.Title), false)
	pdf.SetAuthor("framepass", false)
	pdf.SetAutoPageBreak(true, pdfMargin)

	geometryPage(pdf, in)
	tracePages(pdf, in)

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func geometryPage(pdf *gofpdf.Fpdf, in Input) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(pdfMargin, pdfMargin, in.Title)

	boxes, extent := flatten(in.Root)
	if len(boxes) == 0 || extent.W <= 0 || extent.H <= 0 {
		return
	}
	// fit the layout into the printable area below the title
	availW := pdfPageW - 2*pdfMargin
	availH := pdfPageH - 3*pdfMargin
	scale := min(availW/float64(extent.W), availH/float64(extent.H))
	ox, oy := pdfMargin, 2*pdfMargin

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetLineWidth(0.5)
	for _, b := range boxes {
		c := colorFor(b.depth)
		pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
		pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
		x := ox + float64(b.r.X-extent.X)*scale
		y := oy + float64(b.r.Y-extent.Y)*scale
		pdf.Rect(x, y, float64(b.r.W)*scale, float64(b.r.H)*scale, "D")
		pdf.Text(x+2, y+8, b.name)
	}
	pdf.SetTextColor(0, 0, 0)
}

func tracePages(pdf *gofpdf.Fpdf, in Input) {
	if len(in.Frames) == 0 {
		return
	}
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 18, "Handler trace", "", 1, "L", false, 0, "")
	for _, f := range in.Frames {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 14, f.Summary(), "B", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 8)
		for i, s := range f.Steps {
			pdf.CellFormat(30, 10, fmt.Sprintf("%d", i+1), "", 0, "R", false, 0, "")
			pdf.CellFormat(120, 10, s.Pass.String()+"/"+s.Subpass.String(), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 10, s.Element+"."+s.Handler, "", 1, "L", false, 0, "")
		}
		pdf.Ln(6)
	}
}
