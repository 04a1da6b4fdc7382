package vectorstore

import (
	"math"
	"sort"
	"time"
)

// decayExpr evaluates the configured curve at t (unix seconds) against
// the target datetime, returning a value in [0, 1] the same way Qdrant's
// native decay() formula functions do: at dt == 0 every curve evaluates
// to 1, and at dt == scale every curve evaluates to cfg.Midpoint (default
// 0.5 when unset or out of (0, 1)). The backends themselves ignore
// SearchRequest.Decay; the search pipeline's retrievalOp applies this
// client-side to every backend's (fused) results, per the Open Question
// resolution recorded in DESIGN.md: client-side emulation is mandated
// regardless of destination capability, so decay behavior never depends
// on which backend a Collection happens to be wired to.
func decayExpr(cfg DecayConfig, t int64) float64 {
	scale := cfg.ScaleSeconds
	if scale <= 0 {
		scale = 1
	}
	midpoint := cfg.Midpoint
	if midpoint <= 0 || midpoint >= 1 {
		midpoint = 0.5
	}
	dt := float64(cfg.TargetDatetime - t)
	if dt < 0 {
		dt = -dt
	}
	lnMidpoint := math.Log(midpoint)

	switch cfg.Type {
	case DecayLinear:
		v := 1 - (1-midpoint)*dt/float64(scale)
		if v < 0 {
			v = 0
		}
		return v
	case DecayExponential:
		return math.Exp(lnMidpoint * dt / float64(scale))
	case DecayGaussian:
		x := dt / float64(scale)
		return math.Exp(lnMidpoint * x * x)
	default:
		return 1
	}
}

// ApplyDecay combines a fused score with the decay expression per
// spec.md §4.6's weight rule: weight 0 leaves the score untouched,
// weight 1 replaces it with the decay expression alone, and anything in
// between blends linearly. Callers that must scope decay to a subset of
// hits (e.g. only sources declaring supports_temporal_relevance) call
// this per qualifying hit rather than over a whole result set.
func ApplyDecay(score float64, cfg DecayConfig, entityTimestamp int64) float64 {
	if cfg.Weight <= 0 {
		return score
	}
	expr := decayExpr(cfg, entityTimestamp)
	if cfg.Weight >= 1 {
		return expr
	}
	return score * ((1 - cfg.Weight) + cfg.Weight*expr)
}

// reciprocalRankFusion fuses ranked id lists from independent retrieval
// passes (e.g. dense and sparse prefetch) into one score per id, the
// standard RRF formula sum(1 / (k + rank)) with k = 60.
func reciprocalRankFusion(rankings [][]string) map[string]float64 {
	const k = 60.0
	fused := make(map[string]float64)
	for _, ranking := range rankings {
		for rank, id := range ranking {
			fused[id] += 1.0 / (k + float64(rank+1))
		}
	}
	return fused
}

// FuseHybrid merges independently ranked dense and sparse Hit lists for
// one query into a single fused-score list via reciprocalRankFusion, the
// way spec.md §4.6 describes hybrid retrieval fusing prefetches from
// both vectors on every destination. A hit present in both lists keeps
// the payload it carried in the dense list (the richer prefetch pass).
func FuseHybrid(dense, sparse []Hit) []Hit {
	byID := make(map[string]Hit, len(dense)+len(sparse))
	var rankings [][]string

	if len(dense) > 0 {
		ids := make([]string, len(dense))
		for i, h := range dense {
			ids[i] = h.ID
			byID[h.ID] = h
		}
		rankings = append(rankings, ids)
	}
	if len(sparse) > 0 {
		ids := make([]string, len(sparse))
		for i, h := range sparse {
			ids[i] = h.ID
			if _, ok := byID[h.ID]; !ok {
				byID[h.ID] = h
			}
		}
		rankings = append(rankings, ids)
	}

	fused := reciprocalRankFusion(rankings)
	hits := make([]Hit, 0, len(fused))
	for id, score := range fused {
		h := byID[id]
		h.Score = score
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

// DecayTimestamp extracts the unix-seconds timestamp named by field out
// of a hit payload, tolerating the shapes a datetime value actually
// arrives in across backends: a time.Time (set directly by Go code), an
// RFC3339 string (round-tripped through a backend's JSON wire format),
// or a bare numeric unix timestamp.
func DecayTimestamp(payload map[string]any, field string) (int64, bool) {
	v, ok := payload[field]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case time.Time:
		return t.Unix(), true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0, false
		}
		return parsed.Unix(), true
	case float64:
		return int64(t), true
	case int64:
		return t, true
	default:
		return 0, false
	}
}
