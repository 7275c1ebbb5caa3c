package document

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// BlockKind classifies a structural unit within a document.
type BlockKind string

const (
	KindText    BlockKind = "text"
	KindTitle   BlockKind = "title"
	KindTable   BlockKind = "table"
	KindFigure  BlockKind = "figure"
	KindFormula BlockKind = "formula"
	KindList    BlockKind = "list_item"
	KindCaption BlockKind = "caption"
	KindHeader  BlockKind = "page_header"
	KindFooter  BlockKind = "page_footer"
)

// ParseBlockKind maps a raw model label to a BlockKind. Unknown labels
// degrade to KindText so a single odd element never fails the document.
func ParseBlockKind(raw string) BlockKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "paragraph", "plain_text", "plain text":
		return KindText
	case "title", "heading", "section-header", "section_header":
		return KindTitle
	case "table":
		return KindTable
	case "figure", "picture", "image":
		return KindFigure
	case "formula", "equation", "math":
		return KindFormula
	case "list", "list_item", "list-item":
		return KindList
	case "caption":
		return KindCaption
	case "page_header", "header":
		return KindHeader
	case "page_footer", "footer":
		return KindFooter
	default:
		return KindText
	}
}

// Rect is an axis-aligned bounding box in absolute pixel coordinates,
// corners ordered so that X2 > X1 and Y2 > Y1.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the rectangle has positive area.
func (r Rect) Valid() bool {
	return r.X2 > r.X1 && r.Y2 > r.Y1
}

func (r Rect) Area() float64 {
	if !r.Valid() {
		return 0
	}
	return (r.X2 - r.X1) * (r.Y2 - r.Y1)
}

// IoU computes intersection-over-union with another rectangle.
func (r Rect) IoU(o Rect) float64 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Block is a single structural unit within a Document.
type Block struct {
	Kind         BlockKind `json:"kind"`
	BBox         *Rect     `json:"bbox,omitempty"`
	Text         string    `json:"text"`
	ReadingOrder int       `json:"reading_order"`
}

// Document is the canonical, model-agnostic representation of extracted
// content. Blocks carry a 0-based contiguous reading order; documents are
// treated as immutable once built.
type Document struct {
	SampleID string  `json:"sample_id"`
	Blocks   []Block `json:"blocks"`
}

// New builds a Document from blocks, sorting by reading order and
// reassigning contiguous 0-based indices so the invariant always holds.
func New(sampleID string, blocks []Block) Document {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReadingOrder < sorted[j].ReadingOrder
	})
	for i := range sorted {
		sorted[i].ReadingOrder = i
	}
	return Document{SampleID: sampleID, Blocks: sorted}
}

// KindCounts tallies blocks by kind, mirroring the elements-detected
// breakdown in the evaluation report.
func (d Document) KindCounts() map[BlockKind]int {
	counts := make(map[BlockKind]int)
	for _, b := range d.Blocks {
		counts[b.Kind]++
	}
	return counts
}

// HasBoxes reports whether every block carries a valid bounding box.
// Layout accuracy is only measured when both documents have full boxes.
func (d Document) HasBoxes() bool {
	if len(d.Blocks) == 0 {
		return false
	}
	for _, b := range d.Blocks {
		if b.BBox == nil || !b.BBox.Valid() {
			return false
		}
	}
	return true
}

// LoadFile reads a canonical Document from a JSON file, as written for
// reference/ground-truth sets.
func LoadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return New(d.SampleID, d.Blocks), nil
}
