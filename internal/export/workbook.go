// Package export writes ranking results to spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet    = "Summary"
	CandidatesSheet = "Ranked Candidates"
	DetailsSheet    = "Details"
)

var candidateHeaders = []string{
	"Rank", "Candidate", "File", "Match %", "Semantic", "Skill Ratio", "Experience",
	"Matched Skills", "Missing Skills", "Summary",
}

// now is replaced in tests.
var now = time.Now

type bandStyles struct {
	strong, good, fair, weak int
}

func (b bandStyles) pick(pct int) int {
	switch {
	case pct >= 75:
		return b.strong
	case pct >= 50:
		return b.good
	case pct >= 30:
		return b.fair
	default:
		return b.weak
	}
}

// WriteWorkbook renders resp as an xlsx workbook into w.
func WriteWorkbook(w io.Writer, resp *engine.RankResponse) error {
	f, err := build(resp)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook writes the workbook to path, adding the .xlsx extension when
// it is missing, and returns the final path.
func SaveWorkbook(path string, resp *engine.RankResponse) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f, err := build(resp)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook %s: %w", path, err)
	}
	return path, nil
}

func build(resp *engine.RankResponse) (*excelize.File, error) {
	if resp == nil {
		return nil, errors.New("nothing to export")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{CandidatesSheet, DetailsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	steps := []struct {
		name string
		fn   func(*excelize.File, *engine.RankResponse) error
	}{
		{SummarySheet, summarySheet},
		{CandidatesSheet, candidatesSheet},
		{DetailsSheet, detailsSheet},
	}
	for _, step := range steps {
		if err := step.fn(f, resp); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s sheet: %w", strings.ToLower(step.name), err)
		}
	}
	return f, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func summarySheet(f *excelize.File, resp *engine.RankResponse) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return err
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 80); err != nil {
		return err
	}

	if err := f.SetCellValue(SummarySheet, "A1", "Resume Ranking Report"); err != nil {
		return err
	}
	if err := f.MergeCell(SummarySheet, "A1", "B1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", header); err != nil {
		return err
	}

	var best, total int
	for i, c := range resp.Candidates {
		if i == 0 || c.MatchPercentage > best {
			best = c.MatchPercentage
		}
		total += c.MatchPercentage
	}
	average := 0.0
	if len(resp.Candidates) > 0 {
		average = float64(total) / float64(len(resp.Candidates))
	}

	rows := [][2]any{
		{"Target type:", resp.TargetKind},
		{"Target:", resp.Target},
		{"Generated:", now().Format("2006-01-02 15:04:05")},
		{"Resumes:", resp.TotalResumes},
		{"Weights:", fmt.Sprintf("semantic %.2f, skill %.2f, experience %.2f",
			resp.Weights.Semantic, resp.Weights.Skill, resp.Weights.Experience)},
		{"Best match %:", best},
		{"Average match %:", fmt.Sprintf("%.1f", average)},
		{"Processing time (s):", fmt.Sprintf("%.2f", resp.ProcessingTime)},
	}
	for i, row := range rows {
		r := i + 3
		a, b := cell("A", r), cell("B", r)
		if err := f.SetCellValue(SummarySheet, a, row[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SummarySheet, a, a, label); err != nil {
			return err
		}
		if err := f.SetCellValue(SummarySheet, b, row[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SummarySheet, b, b, wrap); err != nil {
			return err
		}
	}
	return nil
}

func candidatesSheet(f *excelize.File, resp *engine.RankResponse) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	bands, err := newBandStyles(f)
	if err != nil {
		return err
	}

	widths := []float64{8, 24, 24, 10, 10, 12, 12, 30, 30, 70}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(CandidatesSheet, col, col, width); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(CandidatesSheet, "A1", &candidateHeaders); err != nil {
		return err
	}
	last := cell(lastColumn(), 1)
	if err := f.SetCellStyle(CandidatesSheet, "A1", last, header); err != nil {
		return err
	}

	for i, c := range resp.Candidates {
		r := i + 2
		values := []any{
			c.Rank,
			c.Name,
			c.Filename,
			c.MatchPercentage,
			round2(c.SemanticScore),
			round2(c.SkillMatchRatio),
			round2(c.ExperienceSignal),
			strings.Join(c.MatchedSkills, ", "),
			strings.Join(c.MissingSkills, ", "),
			c.Summary,
		}
		if err := f.SetSheetRow(CandidatesSheet, cell("A", r), &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(CandidatesSheet, cell("A", r), cell(lastColumn(), r), bands.pick(c.MatchPercentage)); err != nil {
			return err
		}
	}

	if len(resp.Candidates) > 0 {
		ref := fmt.Sprintf("A1:%s", cell(lastColumn(), len(resp.Candidates)+1))
		if err := f.AutoFilter(CandidatesSheet, ref, nil); err != nil {
			return err
		}
	}

	return f.SetPanes(CandidatesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func detailsSheet(f *excelize.File, resp *engine.RankResponse) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return err
	}

	for col, width := range map[string]float64{"A": 8, "B": 24, "C": 16, "D": 90} {
		if err := f.SetColWidth(DetailsSheet, col, col, width); err != nil {
			return err
		}
	}

	headers := []string{"Rank", "Candidate", "Category", "Details"}
	if err := f.SetSheetRow(DetailsSheet, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(DetailsSheet, "A1", "D1", header); err != nil {
		return err
	}

	r := 2
	for _, c := range resp.Candidates {
		sections := []struct {
			category string
			text     string
		}{
			{"Feedback", c.Feedback},
			{"Evidence", strings.Join(c.Evidence, "\n")},
			{"Improvements", strings.Join(c.Improvements, "\n")},
		}
		for _, s := range sections {
			if s.text == "" {
				continue
			}
			values := []any{c.Rank, c.Name, s.category, s.text}
			if err := f.SetSheetRow(DetailsSheet, cell("A", r), &values); err != nil {
				return err
			}
			if err := f.SetCellStyle(DetailsSheet, cell("A", r), cell("D", r), wrap); err != nil {
				return err
			}
			r++
		}
	}
	return nil
}

func newBandStyles(f *excelize.File) (bandStyles, error) {
	var b bandStyles
	targets := []struct {
		dst   *int
		color string
	}{
		{&b.strong, "C6EFCE"},
		{&b.good, "FFEB9C"},
		{&b.fair, "FFC7CE"},
		{&b.weak, "FF9999"},
	}
	for _, t := range targets {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{t.color}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err != nil {
			return b, err
		}
		*t.dst = id
	}
	return b, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func lastColumn() string {
	name, _ := excelize.ColumnNumberToName(len(candidateHeaders))
	return name
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
