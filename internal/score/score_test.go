package score

import (
	"testing"

	"doceval/internal/document"
)

func boxedDoc(id string) document.Document {
	return document.New(id, []document.Block{
		{Kind: document.KindTitle, Text: "Annual Report", BBox: &document.Rect{X1: 10, Y1: 10, X2: 200, Y2: 40}},
		{Kind: document.KindText, Text: "Revenue grew strongly this year.", BBox: &document.Rect{X1: 10, Y1: 50, X2: 200, Y2: 120}},
		{Kind: document.KindTable, Text: "Q1 | 100\nQ2 | 120", BBox: &document.Rect{X1: 10, Y1: 130, X2: 200, Y2: 300}},
	})
}

func textDoc(id string, texts ...string) document.Document {
	blocks := make([]document.Block, len(texts))
	for i, s := range texts {
		blocks[i] = document.Block{Kind: document.KindText, Text: s, ReadingOrder: i}
	}
	return document.New(id, blocks)
}

func TestScoreIdentityWithBoxes(t *testing.T) {
	d := boxedDoc("s1")
	rep := Score(d, d)
	if rep.Aggregate.TextAccuracy != 1.0 {
		t.Fatalf("text accuracy: got %f want 1.0", rep.Aggregate.TextAccuracy)
	}
	if rep.Aggregate.LayoutAccuracy == nil || *rep.Aggregate.LayoutAccuracy != 1.0 {
		t.Fatalf("layout accuracy: got %v want 1.0", rep.Aggregate.LayoutAccuracy)
	}
	if rep.Aggregate.BlockCountDelta != 0 {
		t.Fatalf("block count delta: got %d", rep.Aggregate.BlockCountDelta)
	}
	if len(rep.Matches) != 3 {
		t.Fatalf("matches: got %d want 3", len(rep.Matches))
	}
}

func TestScoreIdentityWithoutBoxesLayoutIsNil(t *testing.T) {
	d := textDoc("s1", "alpha", "beta")
	rep := Score(d, d)
	if rep.Aggregate.TextAccuracy != 1.0 {
		t.Fatalf("text accuracy: got %f", rep.Aggregate.TextAccuracy)
	}
	if rep.Aggregate.LayoutAccuracy != nil {
		t.Fatalf("layout accuracy should be nil without boxes, got %v", *rep.Aggregate.LayoutAccuracy)
	}
}

func TestScoreBothEmpty(t *testing.T) {
	rep := Score(textDoc("s1"), textDoc("s1"))
	if rep.Aggregate.TextAccuracy != 1.0 {
		t.Fatalf("empty-vs-empty accuracy: got %f want 1.0", rep.Aggregate.TextAccuracy)
	}
}

func TestScoreEmptyPrediction(t *testing.T) {
	rep := Score(textDoc("s1"), textDoc("s1", "something"))
	if rep.Aggregate.TextAccuracy != 0 {
		t.Fatalf("accuracy: got %f want 0", rep.Aggregate.TextAccuracy)
	}
	if rep.Aggregate.BlockCountDelta != -1 {
		t.Fatalf("delta: got %d want -1", rep.Aggregate.BlockCountDelta)
	}
}

func TestScoreUnmatchedBlocksPenalized(t *testing.T) {
	pred := textDoc("s1", "the quick brown fox", "zzzz completely unrelated qqqq")
	ref := textDoc("s1", "the quick brown fox")
	rep := Score(pred, ref)

	if len(rep.Matches) != 1 {
		t.Fatalf("matches: got %d want 1", len(rep.Matches))
	}
	if rep.Matches[0].PredIndex != 0 || rep.Matches[0].RefIndex != 0 {
		t.Fatalf("greedy picked wrong pair: %+v", rep.Matches[0])
	}
	if rep.Matches[0].Similarity != 1.0 {
		t.Fatalf("matched similarity: got %f", rep.Matches[0].Similarity)
	}
	if rep.Aggregate.TextAccuracy >= 1.0 {
		t.Fatalf("unmatched block not penalized: %f", rep.Aggregate.TextAccuracy)
	}
	if rep.Aggregate.BlockCountDelta != 1 {
		t.Fatalf("delta: got %d want 1", rep.Aggregate.BlockCountDelta)
	}
}

func TestScoreGreedyAlignsByIoU(t *testing.T) {
	// reference order swapped relative to prediction; with an extra
	// predicted block the alignment must fall back to greedy IoU.
	a := document.Rect{X1: 0, Y1: 0, X2: 100, Y2: 50}
	b := document.Rect{X1: 0, Y1: 60, X2: 100, Y2: 120}
	c := document.Rect{X1: 0, Y1: 130, X2: 100, Y2: 200}
	pred := document.New("s1", []document.Block{
		{Kind: document.KindText, Text: "first region", BBox: &a, ReadingOrder: 0},
		{Kind: document.KindText, Text: "second region", BBox: &b, ReadingOrder: 1},
		{Kind: document.KindText, Text: "spurious", BBox: &c, ReadingOrder: 2},
	})
	ref := document.New("s1", []document.Block{
		{Kind: document.KindText, Text: "second region", BBox: &b, ReadingOrder: 0},
		{Kind: document.KindText, Text: "first region", BBox: &a, ReadingOrder: 1},
	})

	rep := Score(pred, ref)
	if len(rep.Matches) != 2 {
		t.Fatalf("matches: got %d want 2", len(rep.Matches))
	}
	for _, m := range rep.Matches {
		if pred.Blocks[m.PredIndex].Text != ref.Blocks[m.RefIndex].Text {
			t.Fatalf("IoU alignment paired wrong blocks: %+v", m)
		}
		if m.Similarity != 1.0 {
			t.Fatalf("aligned pair similarity: got %f", m.Similarity)
		}
	}
}

func TestScorePartialTextSimilarity(t *testing.T) {
	pred := textDoc("s1", "the quick brown fox")
	ref := textDoc("s1", "the quick brown cat")
	rep := Score(pred, ref)

	if len(rep.Matches) != 1 {
		t.Fatalf("matches: got %d want 1", len(rep.Matches))
	}
	sim := rep.Matches[0].Similarity
	if sim <= 0 || sim >= 1 {
		t.Fatalf("near-identical texts should score strictly between 0 and 1, got %f", sim)
	}
	// single matched pair of equal length: the weighted mean is the pair score
	if rep.Aggregate.TextAccuracy != sim {
		t.Fatalf("aggregate %f != pair similarity %f", rep.Aggregate.TextAccuracy, sim)
	}
}

func TestScoreDeterministic(t *testing.T) {
	pred := textDoc("s1", "alpha block", "beta block", "gamma block")
	ref := textDoc("s1", "beta block", "alpha block")
	a := Score(pred, ref)
	b := Score(pred, ref)
	if a.Aggregate != b.Aggregate {
		t.Fatalf("aggregate not deterministic: %+v vs %+v", a.Aggregate, b.Aggregate)
	}
	if len(a.Matches) != len(b.Matches) {
		t.Fatalf("match count not deterministic")
	}
	for i := range a.Matches {
		if a.Matches[i] != b.Matches[i] {
			t.Fatalf("match %d not deterministic: %+v vs %+v", i, a.Matches[i], b.Matches[i])
		}
	}
}
