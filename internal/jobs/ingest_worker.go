package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/coursepilot/internal/service"
)

// Ingestor is the ingestion surface the worker drives.
type Ingestor interface {
	IngestSource(ctx context.Context, src service.DocumentSource, clearExisting bool) (*service.IngestReport, error)
}

// IngestWorker re-scans a document source on each tick. Duplicate course
// titles are skipped by the store, so repeated scans only pick up documents
// added since the last pass.
type IngestWorker struct {
	ingest Ingestor
	source service.DocumentSource
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(ingest Ingestor, source service.DocumentSource) *IngestWorker {
	return &IngestWorker{
		ingest: ingest,
		source: source,
	}
}

// Process implements the Processor interface
func (w *IngestWorker) Process(ctx context.Context) error {
	report, err := w.ingest.IngestSource(ctx, w.source, false)
	if err != nil {
		return fmt.Errorf("failed to scan document source: %w", err)
	}

	if report.CoursesAdded > 0 || report.Failed > 0 {
		log.Printf("Ingest scan: %d added, %d skipped, %d failed", report.CoursesAdded, report.Skipped, report.Failed)
	}

	return nil
}
