package engine

import (
	"strings"
	"unicode"
)

type Format string

const (
	FormatLong         Format = "long"
	FormatPriorityWide Format = "priority_wide"
	FormatWideMatrix   Format = "wide_matrix"
	FormatUnknown      Format = "unknown"
)

const (
	ReasonEmptyTable       = "EMPTY_TABLE"
	ReasonDuplicateHeaders = "DUPLICATE_HEADERS"
	ReasonNoRegionColumn   = "NO_REGION_COLUMN"
	ReasonUnrecognized     = "FORMAT_UNRECOGNIZED"
)

const previewRows = 8

// longColumns are the headers that identify the long format,
// case-insensitive and order-independent.
var longColumns = []string{"region_code", "region_name", "warehouse_id", "warehouse_name", "time_hours"}

var regionAliases = []string{
	"region", "region_name", "region name", "регион", "область", "субъект", "регион доставки",
}

// Detection is the outcome of format classification. When Format is
// FormatUnknown, ReasonCode and Preview carry the diagnostics the caller
// renders; otherwise the column fields tell the builder where to look.
type Detection struct {
	Format          Format
	RegionColumn    int
	LongColumns     map[string]int
	PriorityColumns []int
	ValueColumns    []int
	ReasonCode      string
	ReasonText      string
	Preview         [][]string
}

// DetectFormat classifies a raw table into one of the three known
// layouts. Rules are evaluated in order, first match wins: long, then
// priority-wide, then wide-matrix. regionHint optionally names the
// region column for the wide layouts.
func DetectFormat(table [][]string, regionHint string) Detection {
	if len(table) == 0 {
		return unrecognized(table, ReasonEmptyTable, "table has no rows")
	}

	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		header[i] = normalizeHeader(h)
	}

	seen := map[string]int{}
	nonBlank := 0
	for _, h := range header {
		if h == "" {
			continue
		}
		nonBlank++
		seen[h]++
	}
	if nonBlank == 0 {
		return unrecognized(table, ReasonEmptyTable, "header row is blank")
	}
	for h, n := range seen {
		if n > 1 {
			return unrecognized(table, ReasonDuplicateHeaders, "duplicate header: "+h)
		}
	}

	if cols, ok := matchLong(header); ok {
		return Detection{Format: FormatLong, RegionColumn: -1, LongColumns: cols}
	}

	regionCol := findRegionColumn(header, regionHint)

	if regionCol >= 0 {
		if prio := priorityColumnsOf(header, regionCol); len(prio) > 0 && hasCompositeCells(table, prio) {
			return Detection{Format: FormatPriorityWide, RegionColumn: regionCol, PriorityColumns: prio}
		}
		if vals, ok := matchWideMatrix(table, header, regionCol); ok {
			return Detection{Format: FormatWideMatrix, RegionColumn: regionCol, ValueColumns: vals}
		}
		return unrecognized(table, ReasonUnrecognized, "no known layout matched")
	}
	return unrecognized(table, ReasonNoRegionColumn, "no region column found")
}

// ForceFormat builds a Detection for a caller-chosen layout: the manual
// recovery path after an unrecognized result, where the user picks the
// format (and region column) instead of the detector.
func ForceFormat(table [][]string, format Format, regionHint string) Detection {
	if len(table) == 0 {
		return unrecognized(table, ReasonEmptyTable, "table has no rows")
	}
	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		header[i] = normalizeHeader(h)
	}

	switch format {
	case FormatLong:
		cols, ok := matchLong(header)
		if !ok {
			return unrecognized(table, ReasonUnrecognized, "long format requires region_code, region_name, warehouse_id, warehouse_name, time_hours")
		}
		return Detection{Format: FormatLong, RegionColumn: -1, LongColumns: cols}
	case FormatPriorityWide, FormatWideMatrix:
		regionCol := findRegionColumn(header, regionHint)
		if regionCol < 0 {
			return unrecognized(table, ReasonNoRegionColumn, "no region column found")
		}
		var rest []int
		for i, h := range header {
			if i != regionCol && h != "" {
				rest = append(rest, i)
			}
		}
		if len(rest) == 0 {
			return unrecognized(table, ReasonUnrecognized, "no data columns beside the region column")
		}
		if format == FormatPriorityWide {
			cols := priorityColumnsOf(header, regionCol)
			if len(cols) == 0 {
				cols = rest
			}
			return Detection{Format: FormatPriorityWide, RegionColumn: regionCol, PriorityColumns: cols}
		}
		return Detection{Format: FormatWideMatrix, RegionColumn: regionCol, ValueColumns: rest}
	default:
		return unrecognized(table, ReasonUnrecognized, "unknown format tag")
	}
}

func unrecognized(table [][]string, code, text string) Detection {
	preview := table
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	return Detection{
		Format:       FormatUnknown,
		RegionColumn: -1,
		ReasonCode:   code,
		ReasonText:   text,
		Preview:      preview,
	}
}

func matchLong(header []string) (map[string]int, bool) {
	cols := map[string]int{}
	for i, h := range header {
		for _, want := range longColumns {
			if h == want {
				cols[want] = i
			}
		}
	}
	if len(cols) != len(longColumns) {
		return nil, false
	}
	return cols, true
}

func findRegionColumn(header []string, hint string) int {
	if h := normalizeHeader(hint); h != "" {
		for i, col := range header {
			if col == h {
				return i
			}
		}
		return -1
	}
	for _, alias := range regionAliases {
		for i, col := range header {
			if col == alias {
				return i
			}
		}
	}
	return -1
}

// priorityColumnsOf finds headers carrying a rank pattern: a priority
// token plus an ordinal, e.g. "1-й приоритет" or "priority 2".
func priorityColumnsOf(header []string, regionCol int) []int {
	var out []int
	for i, h := range header {
		if i == regionCol || h == "" {
			continue
		}
		if !strings.Contains(h, "приоритет") && !strings.Contains(h, "priority") {
			continue
		}
		if strings.IndexFunc(h, unicode.IsDigit) < 0 {
			continue
		}
		out = append(out, i)
	}
	return out
}

// hasCompositeCells reports whether at least one data cell in the given
// columns matches the "<warehouse>, <hours><unit>" pattern.
func hasCompositeCells(table [][]string, cols []int) bool {
	for _, row := range table[1:] {
		for _, c := range cols {
			if c >= len(row) {
				continue
			}
			if _, _, ok := parsePriorityCell(row[c]); ok {
				return true
			}
		}
	}
	return false
}

// matchWideMatrix requires two or more non-region columns whose data
// cells are purely numeric or blank across all rows; only those columns
// are read as warehouse → time_hours. A column with text cells (notes
// and the like) is left out rather than becoming a phantom warehouse.
func matchWideMatrix(table [][]string, header []string, regionCol int) ([]int, bool) {
	var numeric []int
	for i, h := range header {
		if i == regionCol || h == "" {
			continue
		}
		ok := true
		for _, row := range table[1:] {
			if i >= len(row) || normalizeCell(row[i]) == "" {
				continue
			}
			if !isNumericCell(row[i]) {
				ok = false
				break
			}
		}
		if ok {
			numeric = append(numeric, i)
		}
	}
	if len(numeric) < 2 {
		return nil, false
	}
	return numeric, true
}
