// Package sheet reads the grading workbook and turns its positionally
// aligned sheets into student records.
package sheet

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrMissingSheet    = errors.New("missing sheet")
	ErrRowMismatch     = errors.New("row count mismatch across sheets")
	ErrMissingColumn   = errors.New("missing column")
	ErrBadHeader       = errors.New("malformed question header")
	ErrBadCell         = errors.New("malformed cell")
	ErrUnknownQuestion = errors.New("question not in grading scheme")
)

// Table is one sheet: a header row followed by data rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Index returns the position of the column labelled label, or -1.
func (t *Table) Index(label string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == label {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed content of a cell; cells past the end of a
// short row are empty.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// Columns returns the non-empty header labels that are not in skip, with
// their positions.
func (t *Table) Columns(skip ...string) (labels []string, idx []int) {
	drop := make(map[string]bool, len(skip))
	for _, s := range skip {
		drop[s] = true
	}
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if h == "" || drop[h] {
			continue
		}
		labels = append(labels, h)
		idx = append(idx, i)
	}
	return labels, idx
}

// Workbook is the set of sheets needed for one exam.
type Workbook struct {
	tables map[string]*Table
}

// NewWorkbook assembles a workbook from tables already in memory.
func NewWorkbook(tables ...*Table) *Workbook {
	wb := &Workbook{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		wb.tables[t.Name] = t
	}
	return wb
}

// Table returns the named sheet.
func (wb *Workbook) Table(name string) (*Table, error) {
	t, ok := wb.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingSheet, name)
	}
	return t, nil
}

// Open reads the named sheets of an .xlsx file.
func Open(path string, names []string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return FromFile(f, names)
}

// FromFile reads the named sheets of an opened excelize file. Cell values
// are read raw so that number formats do not round grades.
func FromFile(f *excelize.File, names []string) (*Workbook, error) {
	wb := &Workbook{tables: make(map[string]*Table, len(names))}
	for _, name := range names {
		idx, err := f.GetSheetIndex(name)
		if err != nil {
			return nil, fmt.Errorf("look up sheet %q: %w", name, err)
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrMissingSheet, name, strings.Join(f.GetSheetList(), ", "))
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		t := &Table{Name: name}
		if len(rows) > 0 {
			t.Header = rows[0]
			t.Rows = trimEmptyTail(rows[1:])
		}
		slog.Debug("read sheet", "sheet", name, "columns", len(t.Header), "rows", len(t.Rows))
		wb.tables[name] = t
	}
	return wb, nil
}

func trimEmptyTail(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isBlank(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
