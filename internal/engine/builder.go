package engine

import (
	"errors"
	"fmt"

	"github.com/warecover/backend/internal/models"
)

// ErrEmptyMatrix is the hard parse failure: not a single valid entry
// survived. Problem cells alone never abort a parse.
var ErrEmptyMatrix = errors.New("no valid matrix entries")

type NameConflictPolicy string

const (
	NameConflictLastWins  NameConflictPolicy = "last"
	NameConflictFirstWins NameConflictPolicy = "first"
)

type BuildOptions struct {
	// NameConflict picks the precedence when the same code/id appears
	// with different display names within one upload.
	NameConflict NameConflictPolicy
}

type BuildResult struct {
	Matrix   *models.SpeedMatrix
	Problems []models.ProblemCell
	Warnings []string
}

// BuildMatrix converts a detected table into the canonical SpeedMatrix.
// Unparseable cells become problem cells and are excluded; the parse
// fails only when nothing valid remains.
func BuildMatrix(det Detection, table [][]string, opts BuildOptions) (BuildResult, error) {
	if opts.NameConflict == "" {
		opts.NameConflict = NameConflictLastWins
	}

	var res BuildResult
	switch det.Format {
	case FormatLong:
		res = buildLong(det, table, opts)
	case FormatPriorityWide:
		res = buildPriorityWide(det, table, opts)
	case FormatWideMatrix:
		res = buildWideMatrix(det, table, opts)
	default:
		return BuildResult{}, fmt.Errorf("build matrix: format %q is not buildable", det.Format)
	}

	entries := 0
	for _, row := range res.Matrix.Times {
		entries += len(row)
	}
	if entries == 0 {
		return res, ErrEmptyMatrix
	}

	for _, code := range res.Matrix.RegionCodes() {
		if len(res.Matrix.Times[code]) == 0 {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("region %s is unreachable: no finite delivery time from any warehouse", code))
		}
	}
	return res, nil
}

func buildLong(det Detection, table [][]string, opts BuildOptions) BuildResult {
	m := models.NewSpeedMatrix()
	res := BuildResult{Matrix: m}
	cols := det.LongColumns

	for i, row := range table[1:] {
		rowNum := i + 1
		code := cellAt(row, cols["region_code"])
		whID := cellAt(row, cols["warehouse_id"])
		if code == "" || whID == "" {
			res.addProblem(rowNum, cols["region_code"], rowText(row), "region_code and warehouse_id are required")
			continue
		}
		setName(m.Regions, code, cellAt(row, cols["region_name"]), opts.NameConflict, &res.Warnings, "region "+code)
		setName(m.Warehouses, whID, cellAt(row, cols["warehouse_name"]), opts.NameConflict, &res.Warnings, "warehouse "+whID)

		timeCol := cols["time_hours"]
		raw := cellAt(row, timeCol)
		if raw == "" {
			// Blank time means the warehouse does not serve the region.
			continue
		}
		hours, ok := ParseHours(raw)
		if !ok {
			res.addProblem(rowNum, timeCol, raw, "time_hours must be a positive number")
			continue
		}
		m.Set(code, whID, hours)
	}
	return res
}

func buildPriorityWide(det Detection, table [][]string, opts BuildOptions) BuildResult {
	m := models.NewSpeedMatrix()
	res := BuildResult{Matrix: m}
	assigner := newIDAssigner("wh-")

	for i, row := range table[1:] {
		rowNum := i + 1
		regionName := cellAt(row, det.RegionColumn)
		if regionName == "" {
			res.addProblem(rowNum, det.RegionColumn, rowText(row), "region name is required")
			continue
		}
		code := slugify(regionName)
		setName(m.Regions, code, regionName, opts.NameConflict, &res.Warnings, "region "+code)

		for _, c := range det.PriorityColumns {
			raw := cellAt(row, c)
			if raw == "" {
				continue
			}
			whName, hours, ok := parsePriorityCell(raw)
			if !ok {
				res.addProblem(rowNum, c, raw, "expected \"<warehouse>, <hours>\"")
				continue
			}
			whID := assigner.idFor(whName)
			setName(m.Warehouses, whID, whName, opts.NameConflict, &res.Warnings, "warehouse "+whID)
			if cur := m.Time(code, whID); hours < cur {
				m.Set(code, whID, hours)
			}
		}
	}
	return res
}

func buildWideMatrix(det Detection, table [][]string, opts BuildOptions) BuildResult {
	m := models.NewSpeedMatrix()
	res := BuildResult{Matrix: m}
	assigner := newIDAssigner("")

	header := table[0]
	colID := map[int]string{}
	for _, c := range det.ValueColumns {
		whName := normalizeCell(header[c])
		whID := assigner.idFor(whName)
		colID[c] = whID
		setName(m.Warehouses, whID, whName, opts.NameConflict, &res.Warnings, "warehouse "+whID)
	}

	for i, row := range table[1:] {
		rowNum := i + 1
		regionName := cellAt(row, det.RegionColumn)
		if regionName == "" {
			res.addProblem(rowNum, det.RegionColumn, rowText(row), "region name is required")
			continue
		}
		code := slugify(regionName)
		setName(m.Regions, code, regionName, opts.NameConflict, &res.Warnings, "region "+code)

		for _, c := range det.ValueColumns {
			raw := cellAt(row, c)
			if raw == "" {
				// Blank cell: warehouse cannot serve this region.
				continue
			}
			hours, ok := ParseHours(raw)
			if !ok {
				res.addProblem(rowNum, c, raw, "time_hours must be a positive number")
				continue
			}
			m.Set(code, colID[c], hours)
		}
	}
	return res
}

func (r *BuildResult) addProblem(row, col int, value, reason string) {
	r.Problems = append(r.Problems, models.ProblemCell{Row: row, Column: col, Value: value, Reason: reason})
}

// setName records a display name for a code/id. A conflicting name for
// an already-seen key is a soft warning; precedence follows the policy.
func setName(dst map[string]string, key, name string, policy NameConflictPolicy, warnings *[]string, what string) {
	prev, seen := dst[key]
	if !seen {
		dst[key] = name
		return
	}
	if prev == name {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf("%s has conflicting names %q and %q", what, prev, name))
	if policy == NameConflictLastWins {
		dst[key] = name
	}
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return normalizeCell(row[col])
}

func rowText(row []string) string {
	for _, c := range row {
		if v := normalizeCell(c); v != "" {
			return v
		}
	}
	return ""
}
