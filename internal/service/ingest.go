package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/coursepilot/internal/telemetry"
)

// DocumentSource supplies raw course document text for ingestion.
type DocumentSource interface {
	// List returns the names of available documents, in a stable order.
	List(ctx context.Context) ([]string, error)
	// Read returns one document's plain text by name.
	Read(ctx context.Context, name string) (string, error)
}

// DirSource reads course documents from a local folder.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read docs dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirSource) Read(ctx context.Context, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", name, err)
	}
	return string(data), nil
}

// IngestStore is the slice of the vector store ingestion writes to.
type IngestStore interface {
	AddCourse(ctx context.Context, doc *ParsedDocument) (bool, error)
	Clear(ctx context.Context) error
}

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	CoursesAdded int
	ChunksAdded  int
	Skipped      int
	Failed       int
}

// IngestService turns course documents into catalog entries and chunks.
// Ingestion is idempotent: documents whose course title is already stored
// are skipped, so re-running a pass is safe.
type IngestService struct {
	store    IngestStore
	chunkCfg ChunkConfig
}

func NewIngestService(store IngestStore, chunkCfg ChunkConfig) *IngestService {
	return &IngestService{store: store, chunkCfg: chunkCfg}
}

// IngestText parses and stores a single document. Returns the parsed result
// and whether a new course was added (false means duplicate title, skipped).
func (s *IngestService) IngestText(ctx context.Context, text string) (*ParsedDocument, bool, error) {
	doc, err := ParseCourseDocument(text, s.chunkCfg)
	if err != nil {
		return nil, false, err
	}

	added, err := s.store.AddCourse(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	return doc, added, nil
}

// IngestSource ingests every document the source lists. A malformed document
// is logged and skipped without failing the batch. With clearExisting set,
// both collections are dropped first (clear-and-rebuild).
func (s *IngestService) IngestSource(ctx context.Context, src DocumentSource, clearExisting bool) (*IngestReport, error) {
	if clearExisting {
		if err := s.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	names, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{}
	for _, name := range names {
		text, err := src.Read(ctx, name)
		if err != nil {
			log.Printf("ingest: skipping %s: %v", name, err)
			report.Failed++
			continue
		}

		doc, added, err := s.IngestText(ctx, text)
		if err != nil {
			log.Printf("ingest: skipping %s: %v", name, err)
			report.Failed++
			continue
		}
		if !added {
			report.Skipped++
			continue
		}

		report.CoursesAdded++
		report.ChunksAdded += len(doc.Chunks)
		telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("added course %q (%d chunks)", doc.Course.Title, len(doc.Chunks)))
		log.Printf("ingest: added course %q (%d chunks) from %s", doc.Course.Title, len(doc.Chunks), name)
	}

	return report, nil
}
