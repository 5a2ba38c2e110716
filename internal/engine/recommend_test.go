package engine

import (
	"errors"
	"math"
	"testing"
)

func TestRecommendNextPicksWeightedRegion(t *testing.T) {
	// W2 improves only region A (weight 0.1), W3 only region B (0.9).
	m := testMatrix(map[string]map[string]float64{
		"A": {"W1": 10, "W2": 1},
		"B": {"W1": 10, "W3": 1},
	})
	weights := map[string]float64{"A": 0.1, "B": 0.9}

	recs, err := RecommendNext(m, weights, []string{"W1"}, 1)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != 1 || recs[0].WarehouseID != "W3" {
		t.Fatalf("expected W3 on top, got %+v", recs)
	}
	if recs[0].DeltaAbs <= 0 {
		t.Fatalf("expected positive marginal gain, got %v", recs[0].DeltaAbs)
	}
}

func TestRecommendNextTopOneMatchesFullRanking(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{
		"A": {"W1": 4, "W2": 2, "W3": 8},
		"B": {"W2": 6, "W3": 3},
	})
	weights, _ := LoadWeights(nil, m.RegionCodes())

	one, err := RecommendNext(m, weights, []string{"W1"}, 1)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	all, err := RecommendNext(m, weights, []string{"W1"}, len(m.WarehouseIDs()))
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(one) != 1 || len(all) != 2 {
		t.Fatalf("unexpected sizes: %d and %d", len(one), len(all))
	}
	if one[0].WarehouseID != all[0].WarehouseID || one[0].DeltaAbs != all[0].DeltaAbs {
		t.Fatalf("top-1 must equal head of full ranking: %+v vs %+v", one[0], all[0])
	}
}

func TestRecommendNextDeterministicTieBreak(t *testing.T) {
	// Symmetric candidates: equal gains, lower id wins.
	m := testMatrix(map[string]map[string]float64{
		"A": {"W2": 5},
		"B": {"W1": 5},
	})
	weights := map[string]float64{"A": 0.5, "B": 0.5}

	recs, err := RecommendNext(m, weights, nil, 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != 2 || recs[0].WarehouseID != "W1" || recs[1].WarehouseID != "W2" {
		t.Fatalf("expected W1 before W2 on tie, got %+v", recs)
	}
}

func TestRecommendNextNoCandidates(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{"A": {"W1": 1}})
	weights, _ := LoadWeights(nil, m.RegionCodes())
	recs, err := RecommendNext(m, weights, []string{"W1"}, 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no candidates, got %+v", recs)
	}
}

func TestRecommendNextDeltaPctUndefinedAtZeroBaseline(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{"A": {"W1": 2}})
	weights, _ := LoadWeights(nil, m.RegionCodes())
	recs, err := RecommendNext(m, weights, nil, 1)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != 1 || recs[0].DeltaPctDefined {
		t.Fatalf("expected undefined delta_pct at zero baseline, got %+v", recs)
	}
}

func TestSimulateAddDoesNotMutateActiveSet(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{
		"A": {"W1": 4, "W2": 2},
	})
	weights, _ := LoadWeights(nil, m.RegionCodes())
	active := []string{"W1"}

	sim, err := SimulateAdd(m, weights, active, "W2")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(active) != 1 || active[0] != "W1" {
		t.Fatalf("active set mutated: %v", active)
	}
	if sim.After.GlobalSpeed <= sim.Before.GlobalSpeed {
		t.Fatalf("expected improvement, got %v -> %v", sim.Before.GlobalSpeed, sim.After.GlobalSpeed)
	}
	if len(sim.RegionChanges) != 1 || sim.RegionChanges[0].NewTime != 2 {
		t.Fatalf("unexpected region changes: %+v", sim.RegionChanges)
	}
}

func TestSimulateAddAlreadyActive(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{"A": {"W1": 4}})
	weights, _ := LoadWeights(nil, m.RegionCodes())

	sim, err := SimulateAdd(m, weights, []string{"W1"}, "W1")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !sim.AlreadyActive {
		t.Fatalf("expected AlreadyActive")
	}
	if sim.After.GlobalSpeed != sim.Before.GlobalSpeed {
		t.Fatalf("re-adding an active warehouse must be a no-op")
	}
	if math.Abs(sim.After.GlobalSpeed-0.25) > tolerance {
		t.Fatalf("expected 0.25, got %v", sim.After.GlobalSpeed)
	}
}

func TestSimulateAddUnknownWarehouse(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{"A": {"W1": 4}})
	weights, _ := LoadWeights(nil, m.RegionCodes())
	_, err := SimulateAdd(m, weights, nil, "ghost")
	if !errors.Is(err, ErrUnknownWarehouse) {
		t.Fatalf("expected ErrUnknownWarehouse, got %v", err)
	}
}

func TestRecommendRegionChangesSortedByWeight(t *testing.T) {
	m := testMatrix(map[string]map[string]float64{
		"A": {"W2": 2},
		"B": {"W2": 2},
		"C": {"W1": 1},
	})
	weights := map[string]float64{"A": 0.2, "B": 0.7, "C": 0.1}

	recs, err := RecommendNext(m, weights, []string{"W1"}, 1)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	changes := recs[0].RegionChanges
	if len(changes) != 2 || changes[0].RegionCode != "B" || changes[1].RegionCode != "A" {
		t.Fatalf("expected changes sorted by weight desc, got %+v", changes)
	}
}
