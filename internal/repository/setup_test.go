//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/coursepilot/internal/domain"
	"github.com/cloo-solutions/coursepilot/internal/testutil"
)

const embeddingDims = 1536

// basisVector returns a unit vector along one axis. Distinct axes are at
// cosine distance 1 from each other and 0 from themselves, which makes
// nearest-neighbour ordering deterministic in tests.
func basisVector(axis int) []float32 {
	v := make([]float32, embeddingDims)
	v[axis%embeddingDims] = 1
	return v
}

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() {
		_ = pc.Terminate(context.Background())
	})

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)

	return pool
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	require.NoError(t, testutil.TruncateAll(context.Background(), pool))
}

func insertCourse(t *testing.T, repo *CatalogRepository, title string, axis int, createdAt time.Time) {
	t.Helper()
	course := &domain.Course{
		Title:     title,
		Link:      "https://example.com/" + title,
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Upsert(context.Background(), course, basisVector(axis)))
}
