package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"doceval/internal/common"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListDeterministicOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.png")
	writeFile(t, dir, "a.jpg")
	writeFile(t, dir, "c.jpeg")

	repo := NewRepository(nil, 10)
	samples, err := repo.List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	want := []string{"a", "b", "c"}
	for i, s := range samples {
		if s.ID != want[i] {
			t.Fatalf("order mismatch at %d: got %s want %s", i, s.ID, want[i])
		}
	}
}

func TestListSkipsUnsupportedAndHidden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.png")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, ".hidden.png")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	repo := NewRepository(nil, 10)
	samples, err := repo.List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(samples) != 1 || samples[0].ID != "doc" {
		t.Fatalf("expected only doc.png, got %+v", samples)
	}
	if samples[0].Format != FormatImage {
		t.Fatalf("expected image format, got %s", samples[0].Format)
	}
}

func TestListMissingRootIsSetupError(t *testing.T) {
	repo := NewRepository(nil, 10)
	_, err := repo.List(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatalf("expected error for missing root")
	}
	if !errors.Is(err, common.ErrSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestListDuplicateStemsGetDistinctIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scan.pdf")
	writeFile(t, dir, "scan.png")

	repo := NewRepository(nil, 10)
	samples, err := repo.List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].ID == samples[1].ID {
		t.Fatalf("colliding stems must yield distinct IDs, both got %q", samples[0].ID)
	}
	// directory entries arrive in name order, so the pdf claims the bare stem
	if samples[0].ID != "scan" || samples[1].ID != "scan_png" {
		t.Fatalf("got IDs %q and %q, want scan and scan_png", samples[0].ID, samples[1].ID)
	}
}

func TestSampleID(t *testing.T) {
	cases := map[string]string{
		"Invoice 2024.pdf": "invoice_2024",
		"scan.PNG":         "scan",
		"a.b.c.jpg":        "a.b.c",
	}
	for in, want := range cases {
		if got := SampleID(in); got != want {
			t.Fatalf("SampleID(%q): got %q want %q", in, got, want)
		}
	}
}

func TestReadAsDataURL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.png")
	s := Sample{ID: "x", SourcePath: filepath.Join(dir, "x.png"), Format: FormatImage}
	url, mt, err := ReadAsDataURL(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if mt != "image/png" {
		t.Fatalf("mime: got %s", mt)
	}
	const prefix = "data:image/png;base64,"
	if len(url) <= len(prefix) || url[:len(prefix)] != prefix {
		t.Fatalf("unexpected data URL prefix: %.40s", url)
	}
}

func TestReferenceSetMissingRootIsSetupError(t *testing.T) {
	_, err := LoadReferenceSet(filepath.Join(t.TempDir(), "refs"))
	if err == nil || !errors.Is(err, common.ErrSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestReferenceSetLookupAbsent(t *testing.T) {
	dir := t.TempDir()
	rs, err := LoadReferenceSet(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, found, err := rs.Lookup("ghost")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}
