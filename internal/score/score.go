package score

import (
	"sort"

	"github.com/agext/levenshtein"

	"doceval/internal/document"
)

// Match pairs a predicted block with a reference block and carries their
// text similarity.
type Match struct {
	PredIndex  int     `json:"predicted_index"`
	RefIndex   int     `json:"reference_index"`
	Similarity float64 `json:"similarity"`
}

// Aggregate summarizes a scored sample. LayoutAccuracy is nil when either
// document lacks bounding boxes — "not measured" is distinct from zero.
type Aggregate struct {
	TextAccuracy    float64  `json:"text_accuracy"`
	LayoutAccuracy  *float64 `json:"layout_accuracy"`
	BlockCountDelta int      `json:"block_count_delta"`
}

// Report is the comparison result for a single sample.
type Report struct {
	SampleID   string         `json:"sample_id"`
	Matches    []Match        `json:"per_block_matches"`
	Aggregate  Aggregate      `json:"aggregate"`
	BlockStats map[string]int `json:"block_stats,omitempty"`
	LatencyMS  int64          `json:"latency_ms,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
}

// Score compares a predicted Document against a reference. Blocks align by
// reading order when counts match, otherwise via greedy best-match on bbox
// IoU (both sides boxed) or text similarity. Unmatched blocks on either
// side reduce the aggregate; they are never silently dropped. Scoring is
// fully deterministic for identical inputs.
func Score(pred, ref document.Document) Report {
	rep := Report{SampleID: pred.SampleID}

	np, nr := len(pred.Blocks), len(ref.Blocks)
	rep.Aggregate.BlockCountDelta = np - nr

	if np == 0 && nr == 0 {
		rep.Aggregate.TextAccuracy = 1.0
		return rep
	}
	if np == 0 || nr == 0 {
		return rep
	}

	useBoxes := pred.HasBoxes() && ref.HasBoxes()

	var pairs []Match
	if np == nr {
		for i := 0; i < np; i++ {
			pairs = append(pairs, Match{PredIndex: i, RefIndex: i})
		}
	} else {
		pairs = greedyAlign(pred.Blocks, ref.Blocks, useBoxes)
	}

	var weightSum, simSum float64
	var iouSum float64
	for i := range pairs {
		pb := pred.Blocks[pairs[i].PredIndex]
		rb := ref.Blocks[pairs[i].RefIndex]
		sim := textSimilarity(pb.Text, rb.Text)
		pairs[i].Similarity = sim

		w := float64(max(len(pb.Text), len(rb.Text), 1))
		weightSum += w
		simSum += sim * w

		if useBoxes {
			iouSum += pb.BBox.IoU(*rb.BBox)
		}
	}
	rep.Matches = pairs

	matchedMean := 0.0
	if weightSum > 0 {
		matchedMean = simSum / weightSum
	}
	unmatched := (np - len(pairs)) + (nr - len(pairs))
	penalty := float64(unmatched) / float64(np+nr)
	rep.Aggregate.TextAccuracy = clamp01(matchedMean - penalty)

	if useBoxes && len(pairs) > 0 {
		la := clamp01(iouSum / float64(len(pairs)))
		rep.Aggregate.LayoutAccuracy = &la
	}
	return rep
}

// greedyAlign picks pairs in descending weight order, each block used at
// most once. Ties break on (pred index, ref index) so alignment never
// depends on map or scheduling order. Pairs with zero affinity are not
// matched at all — they count as unmatched penalties instead.
func greedyAlign(pred, ref []document.Block, useBoxes bool) []Match {
	type cand struct {
		p, r   int
		weight float64
	}
	cands := make([]cand, 0, len(pred)*len(ref))
	for p := range pred {
		for r := range ref {
			var w float64
			if useBoxes {
				w = pred[p].BBox.IoU(*ref[r].BBox)
			} else {
				w = textSimilarity(pred[p].Text, ref[r].Text)
			}
			if w > 0 {
				cands = append(cands, cand{p: p, r: r, weight: w})
			}
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].weight != cands[j].weight {
			return cands[i].weight > cands[j].weight
		}
		if cands[i].p != cands[j].p {
			return cands[i].p < cands[j].p
		}
		return cands[i].r < cands[j].r
	})

	usedP := make(map[int]bool, len(pred))
	usedR := make(map[int]bool, len(ref))
	var out []Match
	for _, c := range cands {
		if usedP[c.p] || usedR[c.r] {
			continue
		}
		usedP[c.p] = true
		usedR[c.r] = true
		out = append(out, Match{PredIndex: c.p, RefIndex: c.r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PredIndex < out[j].PredIndex })
	return out
}

// textSimilarity is 1 - normalized edit distance, clamped to [0,1].
func textSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return clamp01(levenshtein.Similarity(a, b, nil))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
