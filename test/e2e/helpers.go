//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/coursepilot/internal/api/handlers"
	"github.com/cloo-solutions/coursepilot/internal/repository"
	"github.com/cloo-solutions/coursepilot/internal/server"
	"github.com/cloo-solutions/coursepilot/internal/service"
	"github.com/cloo-solutions/coursepilot/internal/storage"
	"github.com/cloo-solutions/coursepilot/internal/testutil"
)

const embeddingDims = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Source       *storage.S3Source
	Ingest       *service.IngestService
	Store        *service.VectorStore
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	source, err := storage.NewS3Source(ctx, storage.S3SourceConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "course-docs",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 source: %v", err)
	}
	if err := source.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, store, ingest := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Source:       source,
		Ingest:       ingest,
		Store:        store,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// SeedCourses uploads course documents to the bucket and runs one ingestion
// pass over it.
func (e *E2ETestEnv) SeedCourses(docs map[string]string) *service.IngestReport {
	for name, text := range docs {
		if err := e.Source.PutDocument(e.Ctx, name, text); err != nil {
			e.T.Fatalf("failed to upload %s: %v", name, err)
		}
	}

	report, err := e.Ingest.IngestSource(e.Ctx, e.Source, false)
	if err != nil {
		e.T.Fatalf("ingestion failed: %v", err)
	}
	return report
}

// BuildBinaries builds the coursepilot and coursepilotd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "coursepilot-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "coursepilotd"), "./cmd/coursepilotd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build coursepilotd: %v\n%s", err, out)
	}

	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "coursepilot"), "./cmd/coursepilot")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build coursepilot: %v\n%s", err, out)
	}
}

// RunClient runs the coursepilot CLI command against the test server
func (e *E2ETestEnv) RunClient(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "coursepilot"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("COURSEPILOT_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// hashEmbedder produces deterministic embeddings without calling a provider.
// Identical text always embeds identically, so catalog resolution and chunk
// retrieval behave consistently across runs.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, embeddingDims)
	for i := 0; i < embeddingDims; i++ {
		seed := binary.LittleEndian.Uint32(sum[(i*4)%28:])
		v[i] = float32((seed+uint32(i))%1000)/1000.0 - 0.5
	}
	return v, nil
}

// scriptedChat drives the two-phase protocol without an LLM: the first call
// requests one search with the question as the query, the second summarizes
// whatever the tool returned.
type scriptedChat struct{}

func (scriptedChat) GenerateChat(ctx context.Context, req service.ChatRequest) (*service.ChatResult, error) {
	if len(req.ToolCalls) > 0 {
		answer := "No content was retrieved."
		if len(req.ToolOutputs) > 0 && req.ToolOutputs[0].Content != "" {
			answer = "Based on the course materials: " + req.ToolOutputs[0].Content
		}
		return &service.ChatResult{Text: answer}, nil
	}

	question := ""
	for _, m := range req.Messages {
		if m.Role == service.RoleUser {
			question = m.Content
		}
	}
	args, _ := json.Marshal(map[string]string{"query": question})
	return &service.ChatResult{
		ToolCalls: []service.ToolCallRequest{{
			ID:        "call_1",
			Name:      "search_course_content",
			Arguments: args,
		}},
	}, nil
}

// startServer starts the HTTP server with all handlers wired to stub
// embedding and chat clients.
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func(), *service.VectorStore, *service.IngestService) {
	catalogRepo := repository.NewCatalogRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	store := service.NewVectorStore(hashEmbedder{}, catalogRepo, chunkRepo, repository.NewTxRunner(pool), 5)
	ingest := service.NewIngestService(store, service.DefaultChunkConfig())

	registry := service.NewToolRegistry()
	registry.Register(service.NewCourseSearchTool(store))

	sessions := service.NewSessionStore(2)
	ragSvc := service.NewRAGService(scriptedChat{}, registry, sessions)

	cfg := server.RouterConfig{
		QueryHandler:   handlers.NewQueryHandler(ragSvc),
		CoursesHandler: handlers.NewCoursesHandler(store),
		SessionHandler: handlers.NewSessionHandler(sessions),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, store, ingest
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
