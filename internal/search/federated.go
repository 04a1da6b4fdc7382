package search

import "sort"

// mergeResults combines vector-backed and federated hits into one ranked
// list, per spec.md §4.10 step 5's recommended policy: interleave by score
// within normalized bounds. Each list's scores come from an unrelated
// scoring system (cosine similarity vs. an upstream provider's own
// relevance score) so neither is comparable to the other as-is; each list
// is independently min-max normalized to [0, 1] first, then the two are
// merged by descending normalized score.
func mergeResults(vectorHits, federatedHits []Result) []Result {
	merged := make([]Result, 0, len(vectorHits)+len(federatedHits))
	merged = append(merged, normalizeScores(vectorHits)...)
	merged = append(merged, normalizeScores(federatedHits)...)

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}

// normalizeScores rescales a result list's scores to [0, 1] via min-max
// normalization. A list with zero or one element, or one where every
// score is identical, is left at a flat 1.0 — there's nothing to
// normalize against.
func normalizeScores(results []Result) []Result {
	if len(results) == 0 {
		return nil
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	out := make([]Result, len(results))
	spread := maxScore - minScore
	for i, r := range results {
		if spread == 0 {
			r.Score = 1.0
		} else {
			r.Score = (r.Score - minScore) / spread
		}
		out[i] = r
	}
	return out
}
