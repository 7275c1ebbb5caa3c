package corpus

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"doceval/internal/common"
)

// Format distinguishes how a sample is encoded for the inference request.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatImage Format = "image"
)

// Sample is one input document unit. Immutable; payload bytes are read
// lazily at request time, not held here.
type Sample struct {
	ID         string
	SourcePath string
	Format     Format
	SizeBytes  int64
	Pages      int // PDFs only; capped at the repository's max pages
}

var supportedExts = map[string]Format{
	"pdf":  FormatPDF,
	"jpg":  FormatImage,
	"jpeg": FormatImage,
	"png":  FormatImage,
}

// Repository enumerates input documents from a directory.
type Repository struct {
	logger   *slog.Logger
	maxPages int
}

func NewRepository(logger *slog.Logger, maxPages int) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	return &Repository{logger: logger, maxPages: maxPages}
}

// List enumerates samples directly under root in lexicographic filename
// order so repeated runs are directly comparable. Files with unsupported
// extensions are skipped with a warning; hidden files are ignored. A
// missing root is a setup error.
func (r *Repository) List(root string) ([]Sample, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, common.NewAppError("CORPUS_NOT_FOUND", fmt.Sprintf("samples directory %q", root), common.ErrSetup)
	}
	if !info.IsDir() {
		return nil, common.NewAppError("CORPUS_NOT_FOUND", fmt.Sprintf("%q is not a directory", root), common.ErrSetup)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, common.NewAppError("CORPUS_READ", fmt.Sprintf("reading %q", root), common.ErrSetup)
	}

	var samples []Sample
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || isHidden(e.Name()) {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name()), "."))
		format, ok := supportedExts[ext]
		if !ok {
			r.logger.Warn("corpus.skip_unsupported", "file", e.Name(), "ext", ext)
			continue
		}
		path := filepath.Join(root, e.Name())
		fi, err := e.Info()
		if err != nil {
			r.logger.Warn("corpus.stat_failed", "file", e.Name(), "error", err)
			continue
		}
		id := SampleID(e.Name())
		if seen[id] {
			// Distinct files can share a stem (scan.png vs scan.pdf); per-sample
			// report paths are keyed by ID, so a collision would overwrite output.
			alt := id + "_" + ext
			for i := 2; seen[alt]; i++ {
				alt = fmt.Sprintf("%s_%s_%d", id, ext, i)
			}
			r.logger.Warn("corpus.duplicate_id", "file", e.Name(), "id", id, "renamed", alt)
			id = alt
		}
		seen[id] = true
		s := Sample{
			ID:         id,
			SourcePath: path,
			Format:     format,
			SizeBytes:  fi.Size(),
		}
		if format == FormatPDF {
			s.Pages = r.pageCount(path)
		}
		samples = append(samples, s)
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].SourcePath < samples[j].SourcePath
	})
	r.logger.Info("corpus.listed", "root", root, "samples", len(samples))
	return samples, nil
}

// SampleID derives the stable identifier for a filename: the stem,
// lowercased, with spaces collapsed to underscores.
func SampleID(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return strings.ToLower(strings.ReplaceAll(stem, " ", "_"))
}

// pageCount reads the PDF page count, capped at maxPages. Unreadable PDFs
// report 0 pages here; the inference attempt will surface the real error.
func (r *Repository) pageCount(path string) int {
	f, reader, err := pdf.Open(path)
	if err != nil {
		r.logger.Warn("corpus.pdf_open_failed", "path", path, "error", err)
		return 0
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("corpus.pdf_close_failed", "path", path, "error", cerr)
		}
	}()
	n := reader.NumPage()
	if n > r.maxPages {
		n = r.maxPages
	}
	return n
}

// ReadAsDataURL loads the sample bytes and encodes them as a base64 data
// URL for the inference payload.
func ReadAsDataURL(s Sample) (string, string, error) {
	b, err := os.ReadFile(s.SourcePath)
	if err != nil {
		return "", "", fmt.Errorf("read sample: %w", err)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(s.SourcePath), "."))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "pdf":
			mt = "application/pdf"
		default:
			mt = "application/octet-stream"
		}
	}
	data := base64.StdEncoding.EncodeToString(b)
	return "data:" + mt + ";base64," + data, mt, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
