package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"doceval/internal/common"
	"doceval/internal/document"
	"doceval/internal/inference"
)

// rawElement is one entry of the structured layout JSON. Models disagree
// on the type-label key, so both "category" and "type" are accepted.
type rawElement struct {
	Category     string    `json:"category"`
	Type         string    `json:"type"`
	BBox         []float64 `json:"bbox"`
	Text         string    `json:"text"`
	ReadingOrder *int      `json:"reading_order"`
}

// Normalizer converts heterogeneous raw model responses into the canonical
// Document representation. The raw shape is resolved by content sniffing:
// JSON-looking payloads go through schema validation and field mapping,
// everything else is parsed as markdown.
type Normalizer struct {
	log    *slog.Logger
	schema map[string]any
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{log: logger, schema: BuildLayoutJSONSchema()}
}

// Normalize converts an inference response into a canonical Document.
// Returns an error wrapping common.ErrNormalization when the payload is
// parseable as neither layout JSON nor markdown.
func (n *Normalizer) Normalize(resp inference.Response) (document.Document, error) {
	content := strings.TrimSpace(stripFence(string(resp.RawOutput)))
	if content == "" {
		return document.Document{}, common.NewAppError("EMPTY_RESPONSE", "sample "+resp.SampleID, common.ErrNormalization)
	}

	if looksLikeJSON(content) {
		doc, err := n.fromLayoutJSON(resp.SampleID, []byte(content))
		if err != nil {
			n.log.Error("normalize.json_failed", "sample_id", resp.SampleID, "error", err)
			return document.Document{}, common.NewAppError("INVALID_LAYOUT_JSON", "sample "+resp.SampleID, fmt.Errorf("%w: %v", common.ErrNormalization, err))
		}
		return doc, nil
	}

	n.log.Info("normalize.markdown_fallback", "sample_id", resp.SampleID, "bytes", len(content))
	doc, err := n.fromMarkdown(resp.SampleID, []byte(content))
	if err != nil {
		return document.Document{}, common.NewAppError("INVALID_MARKDOWN", "sample "+resp.SampleID, fmt.Errorf("%w: %v", common.ErrNormalization, err))
	}
	return doc, nil
}

// fromLayoutJSON maps structured layout JSON field-for-field onto blocks.
// Accepted top-level shapes: a bare element array, or an object carrying
// the array under "elements", "layout" or "blocks".
func (n *Normalizer) fromLayoutJSON(sampleID string, raw []byte) (document.Document, error) {
	elems, err := extractElements(raw)
	if err != nil {
		return document.Document{}, err
	}
	if err := ValidateJSONAgainstSchema(n.schema, elems); err != nil {
		return document.Document{}, err
	}

	var parsed []rawElement
	if err := json.Unmarshal(elems, &parsed); err != nil {
		return document.Document{}, fmt.Errorf("decode elements: %w", err)
	}

	blocks := make([]document.Block, 0, len(parsed))
	for i, el := range parsed {
		label := el.Category
		if label == "" {
			label = el.Type
		}
		order := i
		if el.ReadingOrder != nil {
			order = *el.ReadingOrder
		}
		b := document.Block{
			Kind:         document.ParseBlockKind(label),
			Text:         el.Text,
			ReadingOrder: order,
		}
		if r, ok := bboxToRect(el.BBox); ok {
			b.BBox = &r
		}
		blocks = append(blocks, b)
	}
	return document.New(sampleID, blocks), nil
}

// extractElements returns the element array bytes from the raw payload.
func extractElements(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return []byte(trimmed), nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	for _, key := range []string{"elements", "layout", "blocks"} {
		if v, ok := wrapper[key]; ok && strings.HasPrefix(strings.TrimSpace(string(v)), "[") {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no element array under elements/layout/blocks")
}

func bboxToRect(bbox []float64) (document.Rect, bool) {
	if len(bbox) != 4 {
		return document.Rect{}, false
	}
	r := document.Rect{X1: bbox[0], Y1: bbox[1], X2: bbox[2], Y2: bbox[3]}
	if !r.Valid() {
		return document.Rect{}, false
	}
	return r, true
}

// stripFence removes a surrounding markdown code fence (``` or ```json)
// that chat models routinely wrap structured output in.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.Index(trimmed, "\n"); i >= 0 {
		// drop the info string ("json", "markdown", ...)
		first := strings.TrimSpace(trimmed[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			trimmed = trimmed[i+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
