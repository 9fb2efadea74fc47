package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/coursepilot/internal/domain"
	"github.com/cloo-solutions/coursepilot/internal/pagination"
)

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) Upsert(ctx context.Context, course *domain.Course, titleEmbedding []float32) error {
	args := m.Called(ctx, course, titleEmbedding)
	return args.Error(0)
}

func (m *MockCatalogRepository) Exists(ctx context.Context, title string) (bool, error) {
	args := m.Called(ctx, title)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogRepository) GetByTitle(ctx context.Context, title string) (*domain.Course, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Course), args.Error(1)
}

func (m *MockCatalogRepository) NearestTitle(ctx context.Context, embedding []float32) (string, float32, error) {
	args := m.Called(ctx, embedding)
	return args.String(0), args.Get(1).(float32), args.Error(2)
}

func (m *MockCatalogRepository) List(ctx context.Context, afterTitle string, after time.Time, limit int) ([]*domain.Course, error) {
	args := m.Called(ctx, afterTitle, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Course), args.Error(1)
}

func (m *MockCatalogRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogRepository) Delete(ctx context.Context, title string) error {
	args := m.Called(ctx, title)
	return args.Error(0)
}

func (m *MockCatalogRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceChunks(ctx context.Context, courseTitle string, chunks []domain.CourseChunk) error {
	args := m.Called(ctx, courseTitle, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) Search(ctx context.Context, embedding []float32, filter ChunkFilter, limit int) ([]*ChunkSearchResult, error) {
	args := m.Called(ctx, embedding, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ChunkSearchResult), args.Error(1)
}

func (m *MockChunkRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkRepository) DeleteByCourse(ctx context.Context, courseTitle string) error {
	args := m.Called(ctx, courseTitle)
	return args.Error(0)
}

func (m *MockChunkRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fakeTxRunner hands the store's own mocks to the transactional callback and
// counts commits and rollbacks.
type fakeTxRunner struct {
	catalog   CatalogRepository
	chunks    ChunkRepository
	commits   int
	rollbacks int
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(TxRepositories) error) error {
	if err := fn(r); err != nil {
		r.rollbacks++
		return err
	}
	r.commits++
	return nil
}

func (r *fakeTxRunner) Catalog() CatalogRepository { return r.catalog }
func (r *fakeTxRunner) Chunks() ChunkRepository    { return r.chunks }

func newTestStore() (*VectorStore, *MockEmbeddingClient, *MockCatalogRepository, *MockChunkRepository) {
	embedding := new(MockEmbeddingClient)
	catalog := new(MockCatalogRepository)
	chunks := new(MockChunkRepository)
	runner := &fakeTxRunner{catalog: catalog, chunks: chunks}
	return NewVectorStore(embedding, catalog, chunks, runner, 5), embedding, catalog, chunks
}

func testDocument() *ParsedDocument {
	lesson := 1
	return &ParsedDocument{
		Course: domain.Course{
			Title:     "Advanced Retrieval",
			Link:      "https://example.com/course",
			Lessons:   []domain.Lesson{{Number: 1, Title: "Embeddings", Link: "https://example.com/lesson1"}},
			CreatedAt: time.Now().UTC(),
		},
		Chunks: []domain.CourseChunk{
			{CourseTitle: "Advanced Retrieval", LessonNumber: &lesson, ChunkIndex: 0, Content: "Lesson 1 content: embeddings map text to vectors."},
		},
	}
}

func TestVectorStore_AddCourse(t *testing.T) {
	store, embedding, catalog, chunks := newTestStore()
	doc := testDocument()

	catalog.On("Exists", mock.Anything, "Advanced Retrieval").Return(false, nil)
	embedding.On("GenerateEmbedding", mock.Anything, "Advanced Retrieval").Return([]float32{0.1, 0.2}, nil)
	embedding.On("GenerateEmbedding", mock.Anything, doc.Chunks[0].Content).Return([]float32{0.3, 0.4}, nil)
	catalog.On("Upsert", mock.Anything, &doc.Course, []float32{0.1, 0.2}).Return(nil)
	chunks.On("ReplaceChunks", mock.Anything, "Advanced Retrieval", mock.MatchedBy(func(cs []domain.CourseChunk) bool {
		return len(cs) == 1 && len(cs[0].Embedding) == 2
	})).Return(nil)

	added, err := store.AddCourse(context.Background(), doc)

	require.NoError(t, err)
	assert.True(t, added)
	catalog.AssertExpectations(t)
	chunks.AssertExpectations(t)
}

func TestVectorStore_AddCourse_SkipsExisting(t *testing.T) {
	store, embedding, catalog, chunks := newTestStore()
	doc := testDocument()

	catalog.On("Exists", mock.Anything, "Advanced Retrieval").Return(true, nil)

	added, err := store.AddCourse(context.Background(), doc)

	require.NoError(t, err)
	assert.False(t, added)
	embedding.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	catalog.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestVectorStore_AddCourse_EmbeddingFailure(t *testing.T) {
	store, embedding, catalog, _ := newTestStore()
	doc := testDocument()

	catalog.On("Exists", mock.Anything, "Advanced Retrieval").Return(false, nil)
	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	added, err := store.AddCourse(context.Background(), doc)

	require.Error(t, err)
	assert.False(t, added)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
}

func TestVectorStore_AddCourse_ChunkWriteFailureRollsBack(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	catalog := new(MockCatalogRepository)
	chunks := new(MockChunkRepository)
	runner := &fakeTxRunner{catalog: catalog, chunks: chunks}
	store := NewVectorStore(embedding, catalog, chunks, runner, 5)
	doc := testDocument()

	catalog.On("Exists", mock.Anything, "Advanced Retrieval").Return(false, nil)
	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	catalog.On("Upsert", mock.Anything, &doc.Course, mock.Anything).Return(nil)
	chunks.On("ReplaceChunks", mock.Anything, "Advanced Retrieval", mock.Anything).Return(assert.AnError)

	added, err := store.AddCourse(context.Background(), doc)

	require.Error(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, runner.commits)
	assert.Equal(t, 1, runner.rollbacks)
}

func TestVectorStore_AddCourse_RetrySucceedsAfterChunkWriteFailure(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	catalog := new(MockCatalogRepository)
	chunks := new(MockChunkRepository)
	runner := &fakeTxRunner{catalog: catalog, chunks: chunks}
	store := NewVectorStore(embedding, catalog, chunks, runner, 5)
	doc := testDocument()

	// The rolled-back first attempt leaves no catalog row, so the retry's
	// dedupe check still sees a fresh title.
	catalog.On("Exists", mock.Anything, "Advanced Retrieval").Return(false, nil).Twice()
	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	catalog.On("Upsert", mock.Anything, &doc.Course, mock.Anything).Return(nil).Twice()
	chunks.On("ReplaceChunks", mock.Anything, "Advanced Retrieval", mock.Anything).Return(assert.AnError).Once()
	chunks.On("ReplaceChunks", mock.Anything, "Advanced Retrieval", mock.Anything).Return(nil).Once()

	added, err := store.AddCourse(context.Background(), doc)
	require.Error(t, err)
	assert.False(t, added)

	added, err = store.AddCourse(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, runner.commits)
	chunks.AssertExpectations(t)
}

func TestVectorStore_Search(t *testing.T) {
	store, embedding, catalog, chunks := newTestStore()
	lesson := 1

	embedding.On("GenerateEmbedding", mock.Anything, "what are embeddings").Return([]float32{0.5, 0.6}, nil)
	chunks.On("Search", mock.Anything, []float32{0.5, 0.6}, ChunkFilter{}, 5).Return([]*ChunkSearchResult{
		{CourseTitle: "Advanced Retrieval", LessonNumber: &lesson, ChunkIndex: 0, Content: "embeddings map text", Distance: 0.2},
	}, nil)
	catalog.On("GetByTitle", mock.Anything, "Advanced Retrieval").Return(&domain.Course{
		Title:   "Advanced Retrieval",
		Link:    "https://example.com/course",
		Lessons: []domain.Lesson{{Number: 1, Title: "Embeddings", Link: "https://example.com/lesson1"}},
	}, nil)

	results, err := store.Search(context.Background(), SearchInput{Query: "what are embeddings"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/lesson1", results[0].Link)
}

func TestVectorStore_Search_ResolvesCourseName(t *testing.T) {
	store, embedding, catalog, chunks := newTestStore()

	embedding.On("GenerateEmbedding", mock.Anything, "MCP").Return([]float32{0.1}, nil)
	catalog.On("NearestTitle", mock.Anything, []float32{0.1}).Return("MCP: Build Rich-Context AI Apps", float32(0.3), nil)
	embedding.On("GenerateEmbedding", mock.Anything, "tool schemas").Return([]float32{0.2}, nil)
	chunks.On("Search", mock.Anything, []float32{0.2}, ChunkFilter{CourseTitle: "MCP: Build Rich-Context AI Apps"}, 5).
		Return([]*ChunkSearchResult{}, nil)

	results, err := store.Search(context.Background(), SearchInput{Query: "tool schemas", CourseName: "MCP"})

	require.NoError(t, err)
	assert.Empty(t, results)
	chunks.AssertExpectations(t)
}

func TestVectorStore_Search_CourseNotFound(t *testing.T) {
	store, embedding, catalog, chunks := newTestStore()

	embedding.On("GenerateEmbedding", mock.Anything, "Nonexistent").Return([]float32{0.1}, nil)
	catalog.On("NearestTitle", mock.Anything, []float32{0.1}).Return("", float32(0), domain.ErrCourseNotFound)

	_, err := store.Search(context.Background(), SearchInput{Query: "anything", CourseName: "Nonexistent"})

	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
	chunks.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVectorStore_Search_EmptyQuery(t *testing.T) {
	store, _, _, _ := newTestStore()

	_, err := store.Search(context.Background(), SearchInput{})

	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestVectorStore_Search_CapsLimit(t *testing.T) {
	store, embedding, _, chunks := newTestStore()

	embedding.On("GenerateEmbedding", mock.Anything, "q").Return([]float32{0.1}, nil)
	chunks.On("Search", mock.Anything, []float32{0.1}, ChunkFilter{}, 5).Return([]*ChunkSearchResult{}, nil)

	_, err := store.Search(context.Background(), SearchInput{Query: "q", Limit: 50})

	require.NoError(t, err)
	chunks.AssertExpectations(t)
}

func TestVectorStore_Search_CourseLinkFallback(t *testing.T) {
	store, embedding, catalog, chunks := newTestStore()

	// Preamble chunk with no lesson number falls back to the course link.
	embedding.On("GenerateEmbedding", mock.Anything, "overview").Return([]float32{0.1}, nil)
	chunks.On("Search", mock.Anything, []float32{0.1}, ChunkFilter{}, 5).Return([]*ChunkSearchResult{
		{CourseTitle: "Advanced Retrieval", Content: "Course Advanced Retrieval content: welcome."},
	}, nil)
	catalog.On("GetByTitle", mock.Anything, "Advanced Retrieval").Return(&domain.Course{
		Title: "Advanced Retrieval",
		Link:  "https://example.com/course",
	}, nil)

	results, err := store.Search(context.Background(), SearchInput{Query: "overview"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/course", results[0].Link)
}

func TestVectorStore_ListCourses(t *testing.T) {
	store, _, catalog, _ := newTestStore()
	now := time.Now().UTC()

	courses := make([]*domain.Course, 3)
	for i := range courses {
		courses[i] = &domain.Course{Title: string(rune('A' + i)), CreatedAt: now.Add(time.Duration(i) * time.Minute)}
	}

	// limit+1 rows back means another page exists
	catalog.On("List", mock.Anything, "", time.Time{}, 3).Return(courses, nil)

	out, err := store.ListCourses(context.Background(), ListCoursesInput{Limit: 2})

	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.True(t, out.HasMore)
	require.NotEmpty(t, out.Cursor)

	cursor, err := pagination.DecodeCursor(out.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "B", cursor.LastKey)
}

func TestVectorStore_ListCourses_LastPage(t *testing.T) {
	store, _, catalog, _ := newTestStore()

	catalog.On("List", mock.Anything, "", time.Time{}, 21).Return([]*domain.Course{
		{Title: "Only Course", CreatedAt: time.Now()},
	}, nil)

	out, err := store.ListCourses(context.Background(), ListCoursesInput{})

	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.False(t, out.HasMore)
	assert.Empty(t, out.Cursor)
}

func TestVectorStore_ListCourses_InvalidCursor(t *testing.T) {
	store, _, _, _ := newTestStore()

	_, err := store.ListCourses(context.Background(), ListCoursesInput{Cursor: "not base64!!"})

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestVectorStore_RemoveCourse(t *testing.T) {
	store, _, catalog, chunks := newTestStore()

	chunks.On("DeleteByCourse", mock.Anything, "Advanced Retrieval").Return(nil)
	catalog.On("Delete", mock.Anything, "Advanced Retrieval").Return(nil)

	require.NoError(t, store.RemoveCourse(context.Background(), "Advanced Retrieval"))
	catalog.AssertExpectations(t)
	chunks.AssertExpectations(t)
}

func TestVectorStore_Stats(t *testing.T) {
	store, _, catalog, chunks := newTestStore()

	catalog.On("Count", mock.Anything).Return(4, nil)
	chunks.On("Count", mock.Anything).Return(128, nil)

	stats, err := store.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, stats.CourseCount)
	assert.Equal(t, 128, stats.ChunkCount)
}
