package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/warecover/backend/internal/models"
)

// ErrUnknownWarehouse is returned when an active-set id is not present
// in the matrix. Malformed inputs are rejected at the call boundary,
// never silently ignored.
var ErrUnknownWarehouse = errors.New("unknown warehouse id")

// ComputeCoverage computes the weighted global speed of the active set
// and the coverage ratio against the theoretical optimum (every known
// warehouse active). An empty active set is valid and yields zero
// speed. Coverage is undefined, not an error, when the optimum is 0.
func ComputeCoverage(m *models.SpeedMatrix, weights map[string]float64, active []string) (models.CoverageResult, error) {
	if err := validateActive(m, active); err != nil {
		return models.CoverageResult{}, err
	}

	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}

	var res models.CoverageResult
	avgTime := 0.0
	avgDefined := true
	for _, code := range m.RegionCodes() {
		best := math.Inf(1)
		bestAll := math.Inf(1)
		for id, t := range m.Times[code] {
			if t < bestAll {
				bestAll = t
			}
			if activeSet[id] && t < best {
				best = t
			}
		}
		w := weights[code]
		speed := 0.0
		if !math.IsInf(best, 1) {
			speed = 1 / best
		}
		optSpeed := 0.0
		if !math.IsInf(bestAll, 1) {
			optSpeed = 1 / bestAll
		}
		res.GlobalSpeed += w * speed
		res.GlobalSpeedOptimal += w * optSpeed
		if math.IsInf(best, 1) && w > 0 {
			avgDefined = false
		} else {
			avgTime += w * bestTimeOrZero(best)
		}

		res.PerRegion = append(res.PerRegion, models.RegionCoverage{
			RegionCode: code,
			RegionName: m.Regions[code],
			BestTime:   best,
			Speed:      speed,
			Weight:     w,
		})
	}

	if res.GlobalSpeedOptimal > 0 {
		res.Coverage = res.GlobalSpeed / res.GlobalSpeedOptimal
		res.CoverageDefined = true
	}
	if avgDefined {
		res.WeightedAvgTime = avgTime
	} else {
		res.WeightedAvgTime = math.Inf(1)
	}
	return res, nil
}

func bestTimeOrZero(t float64) float64 {
	if math.IsInf(t, 1) {
		return 0
	}
	return t
}

func validateActive(m *models.SpeedMatrix, active []string) error {
	for _, id := range active {
		if !m.HasWarehouse(id) {
			return fmt.Errorf("%w: %s", ErrUnknownWarehouse, id)
		}
	}
	return nil
}
