package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/coursepilot/internal/domain"
	"github.com/cloo-solutions/coursepilot/internal/pagination"
	"github.com/cloo-solutions/coursepilot/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// CatalogRepository persists the course catalog collection: one embedded row
// per course, keyed by title, used for fuzzy name resolution.
type CatalogRepository interface {
	Upsert(ctx context.Context, course *domain.Course, titleEmbedding []float32) error
	Exists(ctx context.Context, title string) (bool, error)
	GetByTitle(ctx context.Context, title string) (*domain.Course, error)
	// NearestTitle returns the stored title closest to the embedding plus its
	// cosine distance, or domain.ErrCourseNotFound when the catalog is empty.
	NearestTitle(ctx context.Context, embedding []float32) (string, float32, error)
	List(ctx context.Context, afterTitle string, after time.Time, limit int) ([]*domain.Course, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, title string) error
	Clear(ctx context.Context) error
}

// ChunkRepository persists the content collection: embedded chunks searched
// by similarity with optional metadata filters.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, courseTitle string, chunks []domain.CourseChunk) error
	Search(ctx context.Context, embedding []float32, filter ChunkFilter, limit int) ([]*ChunkSearchResult, error)
	Count(ctx context.Context) (int, error)
	DeleteByCourse(ctx context.Context, courseTitle string) error
	Clear(ctx context.Context) error
}

// ChunkFilter restricts a content search. An empty CourseTitle matches all
// courses; a nil LessonNumber matches all lessons including preamble chunks.
type ChunkFilter struct {
	CourseTitle  string
	LessonNumber *int
}

// ChunkSearchResult is one retrieved chunk with its similarity distance and
// the citation link resolved through the catalog.
type ChunkSearchResult struct {
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Content      string
	Distance     float32
	Link         string
}

// SearchInput describes one content search request.
type SearchInput struct {
	Query        string
	CourseName   string // fuzzy, resolved against the catalog when non-empty
	LessonNumber *int
	Limit        int // 0 means the store's configured maximum
}

// VectorStore composes the catalog and content collections over a shared
// embedding space. It is the single search surface the tool layer talks to.
type VectorStore struct {
	embedding  EmbeddingClient
	catalog    CatalogRepository
	chunks     ChunkRepository
	tx         TxRunner
	maxResults int
}

// StoreStats reports collection sizes for the catalog endpoint.
type StoreStats struct {
	CourseCount int
	ChunkCount  int
}

func NewVectorStore(embedding EmbeddingClient, catalog CatalogRepository, chunks ChunkRepository, tx TxRunner, maxResults int) *VectorStore {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &VectorStore{
		embedding:  embedding,
		catalog:    catalog,
		chunks:     chunks,
		tx:         tx,
		maxResults: maxResults,
	}
}

// ResolveCourseName resolves a partial or fuzzy course name to the exact
// stored title via nearest-neighbour lookup on the catalog. The top-1 match
// is trusted without a similarity cutoff; the distance is returned so callers
// can observe match quality.
func (s *VectorStore) ResolveCourseName(ctx context.Context, partial string) (string, float32, error) {
	if partial == "" {
		return "", 0, domain.ErrEmptyQuery
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, partial)
	if err != nil {
		return "", 0, domain.ErrEmbeddingFailed.WithCause(err)
	}

	return s.catalog.NearestTitle(ctx, embedding)
}

// Search performs the single-pass filtered similarity search of the content
// collection. A filter that matches nothing yields an empty, non-error
// result; a course name that cannot be resolved fails with ErrCourseNotFound.
func (s *VectorStore) Search(ctx context.Context, input SearchInput) ([]*ChunkSearchResult, error) {
	if input.Query == "" {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "VectorStore.Search", telemetry.SpanAttributes{
		CourseTitle: input.CourseName,
		Operation:   "search",
	})
	defer span.End()

	filter := ChunkFilter{LessonNumber: input.LessonNumber}
	if input.CourseName != "" {
		title, _, err := s.ResolveCourseName(ctx, input.CourseName)
		if err != nil {
			return nil, err
		}
		filter.CourseTitle = title
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		return nil, domain.ErrEmbeddingFailed.WithCause(err)
	}

	limit := input.Limit
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	results, err := s.chunks.Search(ctx, embedding, filter, limit)
	if err != nil {
		return nil, err
	}

	if err := s.resolveLinks(ctx, results); err != nil {
		return nil, err
	}

	return results, nil
}

// resolveLinks joins results back through the catalog to attach lesson (or
// course) links for citations. Chunk rows carry only denormalized titles.
func (s *VectorStore) resolveLinks(ctx context.Context, results []*ChunkSearchResult) error {
	courses := make(map[string]*domain.Course)
	for _, r := range results {
		course, ok := courses[r.CourseTitle]
		if !ok {
			var err error
			course, err = s.catalog.GetByTitle(ctx, r.CourseTitle)
			if err != nil {
				// The two collections are independently queryable; a chunk
				// whose course row is gone keeps an empty link.
				continue
			}
			courses[r.CourseTitle] = course
		}

		if r.LessonNumber != nil {
			if lesson := course.Lesson(*r.LessonNumber); lesson != nil && lesson.Link != "" {
				r.Link = lesson.Link
				continue
			}
		}
		r.Link = course.Link
	}
	return nil
}

// AddCourse writes a parsed document to both collections. Ingestion is
// deduplicated by course title: an existing title is skipped, not
// overwritten, and added is false.
func (s *VectorStore) AddCourse(ctx context.Context, doc *ParsedDocument) (added bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "VectorStore.AddCourse", telemetry.SpanAttributes{
		CourseTitle: doc.Course.Title,
		Operation:   "add_course",
	})
	defer span.End()

	exists, err := s.catalog.Exists(ctx, doc.Course.Title)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	titleEmbedding, err := s.embedding.GenerateEmbedding(ctx, doc.Course.Title)
	if err != nil {
		return false, domain.ErrEmbeddingFailed.WithCause(err)
	}

	chunks := make([]domain.CourseChunk, len(doc.Chunks))
	for i, chunk := range doc.Chunks {
		embedding, err := s.embedding.GenerateEmbedding(ctx, chunk.Content)
		if err != nil {
			return false, domain.ErrEmbeddingFailed.WithCause(fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err))
		}
		chunk.Embedding = embedding
		chunks[i] = chunk
	}

	// Both collections commit together. A failed chunk write must not leave
	// a catalog row behind: dedupe keys on the title, so a half-written
	// course would block every retry of the same document.
	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Catalog().Upsert(ctx, &doc.Course, titleEmbedding); err != nil {
			return err
		}
		return repos.Chunks().ReplaceChunks(ctx, doc.Course.Title, chunks)
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

// RemoveCourse deletes a course's catalog entry and all of its chunks.
func (s *VectorStore) RemoveCourse(ctx context.Context, title string) error {
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByCourse(ctx, title); err != nil {
			return err
		}
		return repos.Catalog().Delete(ctx, title)
	})
}

// Clear deletes both collections entirely.
func (s *VectorStore) Clear(ctx context.Context) error {
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().Clear(ctx); err != nil {
			return err
		}
		return repos.Catalog().Clear(ctx)
	})
}

type ListCoursesInput struct {
	Cursor string
	Limit  int
}

type ListCoursesOutput struct {
	Items   []*domain.Course
	Cursor  string
	HasMore bool
}

// ListCourses pages through the catalog in (created_at, title) order.
func (s *VectorStore) ListCourses(ctx context.Context, input ListCoursesInput) (*ListCoursesOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	afterTitle := ""
	var after time.Time
	if cursor != nil {
		afterTitle = cursor.LastKey
		after = cursor.Timestamp
	}

	// Fetch one extra row to detect a following page.
	items, err := s.catalog.List(ctx, afterTitle, after, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	out := &ListCoursesOutput{Items: items, HasMore: hasMore}
	if hasMore {
		out.Cursor = pagination.CreateNextCursor(items, limit,
			func(c *domain.Course) string { return c.Title },
			func(c *domain.Course) time.Time { return c.CreatedAt },
		)
	}
	return out, nil
}

// Stats returns collection counts.
func (s *VectorStore) Stats(ctx context.Context) (*StoreStats, error) {
	courseCount, err := s.catalog.Count(ctx)
	if err != nil {
		return nil, err
	}
	chunkCount, err := s.chunks.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &StoreStats{CourseCount: courseCount, ChunkCount: chunkCount}, nil
}
