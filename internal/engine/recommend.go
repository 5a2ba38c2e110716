package engine

import (
	"fmt"
	"sort"

	"github.com/warecover/backend/internal/models"
)

// Candidate is one evaluated non-active warehouse: the full coverage
// result as if it were activated, plus its marginal gain over the
// current active set.
type Candidate struct {
	WarehouseID     string
	WarehouseName   string
	Result          models.CoverageResult
	DeltaAbs        float64
	DeltaPct        float64
	DeltaPctDefined bool
	RegionChanges   []models.RegionDelta
}

// Simulation is the before/after effect of hypothetically adding one
// warehouse. The caller's active set is never mutated.
type Simulation struct {
	WarehouseID   string
	WarehouseName string
	AlreadyActive bool
	Before        models.CoverageResult
	After         models.CoverageResult
	RegionChanges []models.RegionDelta
}

// RecommendNext evaluates every warehouse not yet active, independently
// (single-step greedy, no lookahead), and returns the top n by absolute
// marginal gain. Ties break on the lower warehouse id. An empty result
// means every known warehouse is already active.
func RecommendNext(m *models.SpeedMatrix, weights map[string]float64, active []string, n int) ([]Candidate, error) {
	if n < 1 {
		n = 1
	}
	current, err := ComputeCoverage(m, weights, active)
	if err != nil {
		return nil, err
	}

	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}

	var out []Candidate
	for _, id := range m.WarehouseIDs() {
		if activeSet[id] {
			continue
		}
		out = append(out, evaluateCandidate(m, weights, active, current, id))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DeltaAbs == out[j].DeltaAbs {
			return out[i].WarehouseID < out[j].WarehouseID
		}
		return out[i].DeltaAbs > out[j].DeltaAbs
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// SimulateAdd computes the full before/after effect of adding one
// specific warehouse, regardless of its rank. Simulating an already
// active warehouse is a no-op result, not an error.
func SimulateAdd(m *models.SpeedMatrix, weights map[string]float64, active []string, warehouseID string) (Simulation, error) {
	if !m.HasWarehouse(warehouseID) {
		return Simulation{}, fmt.Errorf("%w: %s", ErrUnknownWarehouse, warehouseID)
	}
	before, err := ComputeCoverage(m, weights, active)
	if err != nil {
		return Simulation{}, err
	}

	sim := Simulation{
		WarehouseID:   warehouseID,
		WarehouseName: m.Warehouses[warehouseID],
		Before:        before,
	}
	for _, id := range active {
		if id == warehouseID {
			sim.AlreadyActive = true
			sim.After = before
			return sim, nil
		}
	}

	cand := evaluateCandidate(m, weights, active, before, warehouseID)
	sim.After = cand.Result
	sim.RegionChanges = cand.RegionChanges
	return sim, nil
}

func evaluateCandidate(m *models.SpeedMatrix, weights map[string]float64, active []string, current models.CoverageResult, id string) Candidate {
	withID := make([]string, 0, len(active)+1)
	withID = append(withID, active...)
	withID = append(withID, id)

	// Active ids were validated when computing the current coverage.
	after, _ := ComputeCoverage(m, weights, withID)

	cand := Candidate{
		WarehouseID:   id,
		WarehouseName: m.Warehouses[id],
		Result:        after,
		DeltaAbs:      after.GlobalSpeed - current.GlobalSpeed,
	}
	if current.GlobalSpeed > 0 {
		cand.DeltaPct = cand.DeltaAbs / current.GlobalSpeed
		cand.DeltaPctDefined = true
	}

	for i, reg := range after.PerRegion {
		old := current.PerRegion[i]
		if reg.BestTime < old.BestTime {
			cand.RegionChanges = append(cand.RegionChanges, models.RegionDelta{
				RegionCode: reg.RegionCode,
				RegionName: reg.RegionName,
				Weight:     reg.Weight,
				OldTime:    old.BestTime,
				NewTime:    reg.BestTime,
			})
		}
	}
	sort.SliceStable(cand.RegionChanges, func(i, j int) bool {
		return cand.RegionChanges[i].Weight > cand.RegionChanges[j].Weight
	})
	return cand
}
