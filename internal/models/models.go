package models

import (
	"math"
	"sort"
	"time"
)

type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpeedEntry is one canonical cell of the matrix: delivery time from a
// warehouse to a region. TimeHours is finite and > 0; unserved pairs are
// simply absent from the matrix.
type SpeedEntry struct {
	RegionCode  string  `json:"region_code"`
	WarehouseID string  `json:"warehouse_id"`
	TimeHours   float64 `json:"time_hours"`
}

// SpeedMatrix is the canonical regions × warehouses → time_hours model.
// A missing cell reads as +Inf. The matrix is built once per upload and
// never patched incrementally.
type SpeedMatrix struct {
	Times      map[string]map[string]float64
	Regions    map[string]string
	Warehouses map[string]string
}

func NewSpeedMatrix() *SpeedMatrix {
	return &SpeedMatrix{
		Times:      map[string]map[string]float64{},
		Regions:    map[string]string{},
		Warehouses: map[string]string{},
	}
}

func (m *SpeedMatrix) Set(regionCode, warehouseID string, timeHours float64) {
	row, ok := m.Times[regionCode]
	if !ok {
		row = map[string]float64{}
		m.Times[regionCode] = row
	}
	row[warehouseID] = timeHours
}

// Time returns the delivery time for a cell, +Inf when the warehouse
// does not serve the region.
func (m *SpeedMatrix) Time(regionCode, warehouseID string) float64 {
	if row, ok := m.Times[regionCode]; ok {
		if t, ok := row[warehouseID]; ok {
			return t
		}
	}
	return math.Inf(1)
}

func (m *SpeedMatrix) HasWarehouse(id string) bool {
	_, ok := m.Warehouses[id]
	return ok
}

func (m *SpeedMatrix) RegionCodes() []string {
	out := make([]string, 0, len(m.Regions))
	for code := range m.Regions {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (m *SpeedMatrix) WarehouseIDs() []string {
	out := make([]string, 0, len(m.Warehouses))
	for id := range m.Warehouses {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *SpeedMatrix) Entries() []SpeedEntry {
	var out []SpeedEntry
	for _, code := range m.RegionCodes() {
		row := m.Times[code]
		ids := make([]string, 0, len(row))
		for id := range row {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, SpeedEntry{RegionCode: code, WarehouseID: id, TimeHours: row[id]})
		}
	}
	return out
}

// ProblemCell records a table cell that could not be parsed into the
// matrix. The parse still succeeds as long as at least one valid entry
// remains; problems are surfaced to the caller for confirmation.
type ProblemCell struct {
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

type SalesRecord struct {
	RegionCode string  `json:"region_code"`
	Orders     float64 `json:"orders"`
}

// RegionCoverage is one region's share of a coverage computation.
// BestTime is +Inf when no active warehouse serves the region.
type RegionCoverage struct {
	RegionCode string
	RegionName string
	BestTime   float64
	Speed      float64
	Weight     float64
}

// CoverageResult is produced fresh on every query; it is never cached
// across uploads.
type CoverageResult struct {
	GlobalSpeed        float64
	GlobalSpeedOptimal float64
	Coverage           float64
	CoverageDefined    bool
	WeightedAvgTime    float64
	PerRegion          []RegionCoverage
}

// RegionDelta describes how one region's best time changes when a
// candidate warehouse is added.
type RegionDelta struct {
	RegionCode string
	RegionName string
	Weight     float64
	OldTime    float64
	NewTime    float64
}

type WarehouseStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Upload struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Kind         string    `json:"kind"`
	Filename     string    `json:"filename"`
	Format       string    `json:"format"`
	RowsParsed   int       `json:"rows_parsed"`
	ProblemCells int       `json:"problem_cells"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
