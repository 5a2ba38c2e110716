package engine

import (
	"fmt"
	"sort"

	"github.com/warecover/backend/internal/models"
)

// LoadWeights turns sales records into per-region weights summing to 1.
// Duplicate region codes accumulate. Sales for regions unknown to the
// matrix are ignored with a warning; matrix regions absent from sales
// get weight 0. With no usable sales the weights are uniform.
func LoadWeights(sales []models.SalesRecord, regionCodes []string) (map[string]float64, []string) {
	weights := make(map[string]float64, len(regionCodes))
	if len(regionCodes) == 0 {
		return weights, nil
	}

	known := make(map[string]bool, len(regionCodes))
	for _, code := range regionCodes {
		known[code] = true
	}

	var warnings []string
	orders := map[string]float64{}
	total := 0.0
	unknown := map[string]bool{}
	for _, rec := range sales {
		if !known[rec.RegionCode] {
			unknown[rec.RegionCode] = true
			continue
		}
		orders[rec.RegionCode] += rec.Orders
		total += rec.Orders
	}
	for _, code := range sortedKeys(unknown) {
		warnings = append(warnings, fmt.Sprintf("sales region %s is not in the speed matrix, ignored", code))
	}

	if total <= 0 {
		uniform := 1.0 / float64(len(regionCodes))
		for _, code := range regionCodes {
			weights[code] = uniform
		}
		return weights, warnings
	}

	for _, code := range regionCodes {
		weights[code] = orders[code] / total
	}
	return weights, warnings
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
