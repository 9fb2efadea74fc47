package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/coursepilot/internal/domain"
)

// CatalogRepository persists the course catalog collection. Each row carries
// the course metadata, its lessons as JSONB, and the embedded title used for
// fuzzy name resolution.
type CatalogRepository struct {
	db dbtx
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: pool}
}

func NewCatalogRepositoryWithTx(tx dbtx) *CatalogRepository {
	return &CatalogRepository{db: tx}
}

// Upsert writes a course row, replacing any existing row with the same
// title. Idempotent by primary key.
func (r *CatalogRepository) Upsert(ctx context.Context, course *domain.Course, titleEmbedding []float32) error {
	lessons, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("failed to marshal lessons: %w", err)
	}

	createdAt := course.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO courses (title, instructor, link, lessons, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (title) DO UPDATE
		 SET instructor = EXCLUDED.instructor,
		     link = EXCLUDED.link,
		     lessons = EXCLUDED.lessons,
		     embedding = EXCLUDED.embedding`,
		course.Title,
		course.Instructor,
		course.Link,
		lessons,
		pgvector.NewVector(titleEmbedding),
		createdAt,
	)
	return err
}

func (r *CatalogRepository) Exists(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses WHERE title = $1)`, title,
	).Scan(&exists)
	return exists, err
}

func (r *CatalogRepository) GetByTitle(ctx context.Context, title string) (*domain.Course, error) {
	row := r.db.QueryRow(ctx,
		`SELECT title, instructor, link, lessons, created_at
		 FROM courses WHERE title = $1`, title)

	course, err := scanCourse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCourseNotFound
	}
	return course, err
}

// NearestTitle returns the title whose embedding is closest by cosine
// distance. An empty catalog yields domain.ErrCourseNotFound.
func (r *CatalogRepository) NearestTitle(ctx context.Context, embedding []float32) (string, float32, error) {
	var (
		title    string
		distance float32
	)
	err := r.db.QueryRow(ctx,
		`SELECT title, embedding <=> $1 AS distance
		 FROM courses
		 ORDER BY distance
		 LIMIT 1`,
		pgvector.NewVector(embedding),
	).Scan(&title, &distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, domain.ErrCourseNotFound
	}
	if err != nil {
		return "", 0, err
	}
	return title, distance, nil
}

// List returns courses ordered by creation time then title, for cursor
// pagination. Pass a zero time for the first page.
func (r *CatalogRepository) List(ctx context.Context, afterTitle string, after time.Time, limit int) ([]*domain.Course, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT title, instructor, link, lessons, created_at FROM courses`
	args := []any{}
	if afterTitle != "" {
		query += ` WHERE (created_at, title) > ($1, $2)`
		args = append(args, after, afterTitle)
	}
	query += fmt.Sprintf(` ORDER BY created_at, title LIMIT %d`, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*domain.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count)
	return count, err
}

func (r *CatalogRepository) Delete(ctx context.Context, title string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM courses WHERE title = $1`, title)
	return err
}

func (r *CatalogRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM courses`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*domain.Course, error) {
	var (
		course  domain.Course
		lessons []byte
	)
	if err := row.Scan(&course.Title, &course.Instructor, &course.Link, &lessons, &course.CreatedAt); err != nil {
		return nil, err
	}
	if len(lessons) > 0 {
		if err := json.Unmarshal(lessons, &course.Lessons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lessons: %w", err)
		}
	}
	return &course, nil
}
