package portfolio

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when the workbook file does not exist.
var ErrSheetNotFound = errors.New("portfolio sheet not found")

var whitespace = regexp.MustCompile(`\s+`)

// LoadSheet reads the first worksheet of the workbook at path and returns its
// name and data rows keyed by header.
func LoadSheet(path string) (string, []Row, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrSheetNotFound, path)
		}
		return "", nil, fmt.Errorf("stat sheet: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("open workbook: no worksheets in %s", path)
	}
	name := sheets[0]

	cells, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	return name, ParseRows(cells), nil
}

// ParseRows converts a grid of cells into rows. The header is the row with
// the most non-empty cells; rows above it are ignored and empty rows below it
// are skipped.
func ParseRows(cells [][]string) []Row {
	if len(cells) == 0 {
		return nil
	}

	headerIdx, maxFilled := 0, -1
	for i, r := range cells {
		filled := 0
		for _, c := range r {
			if c != "" {
				filled++
			}
		}
		if filled > maxFilled {
			headerIdx, maxFilled = i, filled
		}
	}

	headers := headerNames(cells[headerIdx])

	var rows []Row
	for _, r := range cells[headerIdx+1:] {
		if emptyCells(r) {
			continue
		}
		row := make(Row, len(headers))
		for c, h := range headers {
			if c < len(r) && r[c] != "" {
				row[h] = r[c]
			} else {
				row[h] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// headerNames collapses whitespace, names blank headers col_N and suffixes
// duplicates with _1, _2, ...
func headerNames(raw []string) []string {
	seen := make(map[string]int, len(raw))
	headers := make([]string, len(raw))

	for i, h := range raw {
		name := strings.TrimSpace(whitespace.ReplaceAllString(h, " "))
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			headers[i] = fmt.Sprintf("%s_%d", name, n+1)
			continue
		}
		seen[name] = 0
		headers[i] = name
	}
	return headers
}

func emptyCells(r []string) bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}
