package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"doceval/internal/common"
	"doceval/internal/document"
)

// ReferenceSet resolves ground-truth Documents for samples, keyed by
// sample id: <dir>/<sample_id>.json holding a canonical Document.
type ReferenceSet struct {
	dir string
}

// LoadReferenceSet validates the reference root. A missing root is a
// setup error because scoring against ground truth was explicitly
// requested; individual missing references are per-sample failures.
func LoadReferenceSet(dir string) (*ReferenceSet, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, common.NewAppError("REFERENCE_NOT_FOUND", fmt.Sprintf("reference directory %q", dir), common.ErrSetup)
	}
	if !info.IsDir() {
		return nil, common.NewAppError("REFERENCE_NOT_FOUND", fmt.Sprintf("%q is not a directory", dir), common.ErrSetup)
	}
	return &ReferenceSet{dir: dir}, nil
}

// Lookup loads the reference Document for a sample id. The second return
// is false when no reference file exists for the id.
func (rs *ReferenceSet) Lookup(sampleID string) (document.Document, bool, error) {
	path := filepath.Join(rs.dir, sampleID+".json")
	if _, err := os.Stat(path); err != nil {
		return document.Document{}, false, nil
	}
	doc, err := document.LoadFile(path)
	if err != nil {
		return document.Document{}, true, err
	}
	return doc, true, nil
}
