/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders scripts into printable documents.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"gopcrclicker/internal/script"
	"gopcrclicker/internal/timecode"
	"gopcrclicker/internal/version"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt). Text uses the built-in Helvetica unless FontPath names a TTF,
// which is embedded as a UTF-8 font; names outside cp1252 need one to print correctly.
type PDFOptions struct {
	FontPath      string
	IncludeDelays bool
	Author        string
}

type rgb struct{ R, G, B int }

var (
	colText   = rgb{0, 0, 0}
	colMuted  = rgb{110, 110, 110}
	colRule   = rgb{200, 200, 200}
	colSet    = rgb{214, 69, 65}
	colAuto   = rgb{46, 134, 193}
	colMenu   = rgb{120, 81, 169}
	colAction = rgb{39, 174, 96}
)

const (
	pageW   = 595.0 // A4 in pt
	pageH   = 842.0
	margin  = 40.0
	rowH    = 18.0
	timeCol = 48.0
	family  = "pcr"
)

// ScriptPDF writes a timeline sheet of s to outPath: a header with the title and team,
// then one row per script line with its colon time and operates.
func ScriptPDF(s *script.Script, title, outPath string, opt PDFOptions) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := WriteScriptPDF(f, s, title, opt); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close pdf: %w", err)
	}
	return nil
}

// WriteScriptPDF renders the timeline sheet to w.
func WriteScriptPDF(w io.Writer, s *script.Script, title string, opt PDFOptions) error {
	if s == nil {
		return fmt.Errorf("script is nil")
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(title, true)
	author := opt.Author
	if author == "" {
		author = "GoPCRClicker"
	}
	pdf.SetAuthor(author, true)
	pdf.SetCreator("gopcrclicker "+version.String(), true)

	tr := func(s string) string { return s }
	if opt.FontPath != "" {
		pdf.AddUTF8Font(family, "", opt.FontPath)
		pdf.AddUTF8Font(family, "B", opt.FontPath)
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	font := func(style string, size float64) {
		if opt.FontPath != "" {
			pdf.SetFont(family, style, size)
		} else {
			pdf.SetFont("Helvetica", style, size)
		}
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(pageH - margin + 10)
		font("", 8)
		setText(pdf, colMuted)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s  %d", tr(title), pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	font("B", 16)
	setText(pdf, colText)
	pdf.CellFormat(0, 22, tr(title), "", 1, "L", false, 0, "")
	font("", 10)
	setText(pdf, colMuted)
	pdf.CellFormat(0, 14, tr(s.TeamLine()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 14, fmt.Sprintf("%d lines, %d operates", len(s.Lines), s.OperateCount()), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	y := pdf.GetY()
	for _, line := range s.Lines {
		if y+rowH > pageH-margin {
			pdf.AddPage()
			y = margin
		}
		setDraw(pdf, colRule)
		pdf.SetLineWidth(0.3)
		pdf.Line(margin, y+rowH, pageW-margin, y+rowH)

		font("B", 10)
		setText(pdf, colText)
		pdf.Text(margin, y+13, timecode.Colon(line[0].Sec()))

		x := margin + timeCol
		countdown := line[0].Sec()
		for _, op := range line {
			label := tr(opLabel(op, s.Team, &countdown, opt.IncludeDelays))
			font("", 10)
			wd := pdf.GetStringWidth(label) + 8
			if x+wd > pageW-margin {
				// wrap onto a continuation row
				y += rowH
				if y+rowH > pageH-margin {
					pdf.AddPage()
					y = margin
				}
				x = margin + timeCol
			}
			setText(pdf, opColor(op))
			pdf.Text(x, y+13, label)
			x += wd
		}
		y += rowH
	}
	return pdf.Output(w)
}

// opLabel is the operate text, with its own second when it moves the countdown.
func opLabel(op script.Operate, team []script.Chara, countdown *int, delays bool) string {
	var b strings.Builder
	b.WriteString(op.Text(team))
	if op.Sec() != *countdown {
		*countdown = op.Sec()
		b.WriteString(" @" + timecode.Colon(op.Sec()))
	}
	if c, ok := op.(script.Click); ok && delays && c.HasDelays() {
		fmt.Fprintf(&b, " [%d,%d]", *c.DelayOn, *c.DelayOff)
	}
	return b.String()
}

func opColor(op script.Operate) rgb {
	switch o := op.(type) {
	case script.Click:
		switch {
		case o.Type == script.Menu:
			return colMenu
		case o.Type.IsAuto():
			return colAuto
		default:
			return colSet
		}
	case script.Record, script.Start, script.Stop:
		return colAction
	default:
		return colText
	}
}

func setText(pdf *gofpdf.Fpdf, c rgb) { pdf.SetTextColor(c.R, c.G, c.B) }

func setDraw(pdf *gofpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.R, c.G, c.B) }
