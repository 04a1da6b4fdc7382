package search

import "testing"

func TestNormalizeScoresFlattensWhenAllEqual(t *testing.T) {
	results := []Result{{EntityID: "a", Score: 5}, {EntityID: "b", Score: 5}}

	out := normalizeScores(results)

	for _, r := range out {
		if r.Score != 1.0 {
			t.Errorf("Score = %v, want 1.0 for a flat distribution", r.Score)
		}
	}
}

func TestNormalizeScoresMinMax(t *testing.T) {
	results := []Result{{EntityID: "a", Score: 10}, {EntityID: "b", Score: 0}, {EntityID: "c", Score: 5}}

	out := normalizeScores(results)

	want := map[string]float64{"a": 1.0, "b": 0.0, "c": 0.5}
	for _, r := range out {
		if r.Score != want[r.EntityID] {
			t.Errorf("Score[%s] = %v, want %v", r.EntityID, r.Score, want[r.EntityID])
		}
	}
}

func TestMergeResultsInterleavesByNormalizedScore(t *testing.T) {
	vectorHits := []Result{{EntityID: "v1", Score: 0.9}, {EntityID: "v2", Score: 0.1}}
	federatedHits := []Result{{EntityID: "f1", Score: 100}, {EntityID: "f2", Score: 0}}

	merged := mergeResults(vectorHits, federatedHits)

	if len(merged) != 4 {
		t.Fatalf("len(merged) = %d, want 4", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Score > merged[i-1].Score {
			t.Fatalf("merged results not sorted descending: %+v", merged)
		}
	}
}

func TestMergeResultsHandlesEmptyLists(t *testing.T) {
	if merged := mergeResults(nil, nil); merged != nil && len(merged) != 0 {
		t.Errorf("expected empty merge, got %+v", merged)
	}
}
