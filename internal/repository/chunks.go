package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/coursepilot/internal/domain"
	"github.com/cloo-solutions/coursepilot/internal/service"
)

// ChunkRepository persists the content collection: embedded course chunks
// searched by cosine distance with optional metadata filters.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes a course's chunks and inserts the new set, so a
// re-ingested course never leaves stale denormalized references behind.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, courseTitle string, chunks []domain.CourseChunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM course_chunks WHERE course_title = $1`, courseTitle)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		_, err := r.db.Exec(ctx,
			`INSERT INTO course_chunks
				(course_title, lesson_number, chunk_index, content, embedding)
			 VALUES
				($1, $2, $3, $4, $5)`,
			c.CourseTitle,
			nullableInt(c.LessonNumber),
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// Search runs the single-pass similarity search, restricted by the filter
// conjunction, ordered by ascending distance with insertion order breaking
// ties.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, filter service.ChunkFilter, limit int) ([]*service.ChunkSearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT course_title, lesson_number, chunk_index, content,
		       embedding <=> $1 AS distance
		FROM course_chunks
		WHERE ($2 = '' OR course_title = $2)
		  AND ($3::int IS NULL OR lesson_number = $3)
		ORDER BY distance, id
		LIMIT $4`

	rows, err := r.db.Query(ctx, query,
		pgvector.NewVector(embedding),
		filter.CourseTitle,
		nullableInt(filter.LessonNumber),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.ChunkSearchResult, 0)
	for rows.Next() {
		var (
			result       service.ChunkSearchResult
			lessonNumber *int
		)
		if err := rows.Scan(&result.CourseTitle, &lessonNumber, &result.ChunkIndex, &result.Content, &result.Distance); err != nil {
			return nil, err
		}
		result.LessonNumber = lessonNumber
		results = append(results, &result)
	}

	return results, rows.Err()
}

func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM course_chunks`).Scan(&count)
	return count, err
}

func (r *ChunkRepository) DeleteByCourse(ctx context.Context, courseTitle string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM course_chunks WHERE course_title = $1`, courseTitle)
	return err
}

func (r *ChunkRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM course_chunks`)
	return err
}
