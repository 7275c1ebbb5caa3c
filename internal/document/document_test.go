package document

import "testing"

func TestNewReassignsReadingOrder(t *testing.T) {
	blocks := []Block{
		{Kind: KindText, Text: "second", ReadingOrder: 10},
		{Kind: KindTitle, Text: "first", ReadingOrder: 3},
	}
	d := New("s1", blocks)
	if d.Blocks[0].Text != "first" || d.Blocks[1].Text != "second" {
		t.Fatalf("blocks not sorted by reading order: %+v", d.Blocks)
	}
	for i, b := range d.Blocks {
		if b.ReadingOrder != i {
			t.Fatalf("reading order not contiguous at %d: %d", i, b.ReadingOrder)
		}
	}
}

func TestParseBlockKindUnknownDegradesToText(t *testing.T) {
	cases := map[string]BlockKind{
		"Title":          KindTitle,
		"section-header": KindTitle,
		"TABLE":          KindTable,
		"equation":       KindFormula,
		"wibble":         KindText,
		"":               KindText,
	}
	for raw, want := range cases {
		if got := ParseBlockKind(raw); got != want {
			t.Fatalf("ParseBlockKind(%q): got %s want %s", raw, got, want)
		}
	}
}

func TestRectIoU(t *testing.T) {
	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
	if got := a.IoU(a); got != 1.0 {
		t.Fatalf("self IoU: got %f want 1.0", got)
	}
	b := Rect{X1: 20, Y1: 20, X2: 30, Y2: 30}
	if got := a.IoU(b); got != 0 {
		t.Fatalf("disjoint IoU: got %f want 0", got)
	}
	c := Rect{X1: 5, Y1: 0, X2: 15, Y2: 10}
	got := a.IoU(c)
	if got <= 0.3 || got >= 0.4 {
		// 50/150
		t.Fatalf("half-overlap IoU: got %f want ~0.333", got)
	}
}

func TestHasBoxes(t *testing.T) {
	box := &Rect{X1: 0, Y1: 0, X2: 1, Y2: 1}
	full := New("s", []Block{{Kind: KindText, BBox: box}, {Kind: KindText, BBox: box}})
	if !full.HasBoxes() {
		t.Fatalf("expected HasBoxes true")
	}
	partial := New("s", []Block{{Kind: KindText, BBox: box}, {Kind: KindText}})
	if partial.HasBoxes() {
		t.Fatalf("expected HasBoxes false for partial boxes")
	}
	empty := New("s", nil)
	if empty.HasBoxes() {
		t.Fatalf("expected HasBoxes false for empty document")
	}
}
