//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"
)

const courseDocA = `Course Title: Building RAG Systems
Course Link: https://example.com/rag
Course Instructor: Ada Lovelace

Lesson 0: Introduction
Lesson Link: https://example.com/rag/0
Retrieval-augmented generation grounds answers in stored documents. This course builds one end to end.

Lesson 1: Chunking
Lesson Link: https://example.com/rag/1
Chunking splits documents into overlapping windows of sentences. Overlap preserves context across boundaries.
`

const courseDocB = `Course Title: Vector Databases
Course Instructor: Grace Hopper

Lesson 0: Storage
Vector databases store embeddings and answer nearest neighbour queries. Cosine distance ranks results.
`

func TestE2E_FullFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	report := env.SeedCourses(map[string]string{
		"rag.txt":     courseDocA,
		"vectors.txt": courseDocB,
	})
	if report.CoursesAdded != 2 {
		t.Fatalf("expected 2 courses added, got %+v", report)
	}
	if report.ChunksAdded == 0 {
		t.Fatalf("expected chunks added, got %+v", report)
	}

	t.Run("health", func(t *testing.T) {
		resp, err := env.Get("/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		if !strings.Contains(string(resp.Data), "ok") {
			t.Fatalf("unexpected health response: %s", resp.Data)
		}
	})

	t.Run("courses catalog", func(t *testing.T) {
		resp, err := env.Get("/api/courses")
		if err != nil {
			t.Fatalf("courses request failed: %v", err)
		}

		var data struct {
			TotalCourses int `json:"total_courses"`
			TotalChunks  int `json:"total_chunks"`
			Items        []struct {
				Title       string `json:"title"`
				Instructor  string `json:"instructor"`
				LessonCount int    `json:"lesson_count"`
			} `json:"items"`
			HasMore bool `json:"has_more"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("failed to parse courses response: %v", err)
		}

		if data.TotalCourses != 2 {
			t.Errorf("expected 2 courses, got %d", data.TotalCourses)
		}
		if data.TotalChunks == 0 {
			t.Error("expected non-zero chunk count")
		}
		if len(data.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(data.Items))
		}
		if data.HasMore {
			t.Error("expected no further pages")
		}
	})

	t.Run("re-ingestion skips existing courses", func(t *testing.T) {
		report := env.SeedCourses(nil)
		if report.CoursesAdded != 0 || report.Skipped != 2 {
			t.Errorf("expected idempotent rescan, got %+v", report)
		}
	})

	var sessionID string

	t.Run("query returns answer with sources", func(t *testing.T) {
		resp, err := env.Post("/api/query", map[string]string{
			"query": "What is chunking?",
		})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}

		var data struct {
			Answer    string `json:"answer"`
			SessionID string `json:"session_id"`
			Sources   []struct {
				Text string `json:"text"`
				Link string `json:"link,omitempty"`
			} `json:"sources"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("failed to parse query response: %v", err)
		}

		if data.Answer == "" {
			t.Error("expected non-empty answer")
		}
		if data.SessionID == "" {
			t.Error("expected a session id")
		}
		if len(data.Sources) == 0 {
			t.Error("expected sources from the search round")
		}
		sessionID = data.SessionID
	})

	t.Run("follow-up reuses session", func(t *testing.T) {
		resp, err := env.Post("/api/query", map[string]string{
			"query":      "Tell me more",
			"session_id": sessionID,
		})
		if err != nil {
			t.Fatalf("follow-up query failed: %v", err)
		}

		var data struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if data.SessionID != sessionID {
			t.Errorf("expected session %s, got %s", sessionID, data.SessionID)
		}
	})

	t.Run("empty query rejected", func(t *testing.T) {
		_, err := env.Post("/api/query", map[string]string{"query": ""})
		if err == nil {
			t.Fatal("expected an error for empty query")
		}
		if !strings.Contains(err.Error(), "400") {
			t.Errorf("expected HTTP 400, got %v", err)
		}
	})

	t.Run("session reset", func(t *testing.T) {
		if _, err := env.Delete("/api/sessions/" + sessionID); err != nil {
			t.Fatalf("session reset failed: %v", err)
		}

		_, err := env.Delete("/api/sessions/unknown-session")
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Errorf("expected HTTP 404 for unknown session, got %v", err)
		}
	})
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	env.SeedCourses(map[string]string{"rag.txt": courseDocA})

	t.Run("courses lists the catalog", func(t *testing.T) {
		out, err := env.RunClient("courses")
		if err != nil {
			t.Fatalf("courses command failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Building RAG Systems") {
			t.Errorf("expected course title in output:\n%s", out)
		}
		if !strings.Contains(out, "Ada Lovelace") {
			t.Errorf("expected instructor in output:\n%s", out)
		}
	})

	t.Run("ask answers and prints the session", func(t *testing.T) {
		out, err := env.RunClient("ask", "What is chunking?")
		if err != nil {
			t.Fatalf("ask command failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Session:") {
			t.Errorf("expected session line in output:\n%s", out)
		}
	})

	t.Run("ask with session then reset", func(t *testing.T) {
		out, err := env.RunClient("ask", "What is chunking?")
		if err != nil {
			t.Fatalf("ask command failed: %v\n%s", err, out)
		}

		var sessionID string
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, "Session: ") {
				sessionID = strings.TrimPrefix(line, "Session: ")
				break
			}
		}
		if sessionID == "" {
			t.Fatalf("no session id in output:\n%s", out)
		}

		out, err = env.RunClient("reset", sessionID)
		if err != nil {
			t.Fatalf("reset command failed: %v\n%s", err, out)
		}
	})

	t.Run("ask with json output", func(t *testing.T) {
		out, err := env.RunClient("ask", "--output", "What is chunking?")
		if err != nil {
			t.Fatalf("ask --output failed: %v\n%s", err, out)
		}

		var data struct {
			Answer    string `json:"answer"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(out), &data); err != nil {
			t.Fatalf("expected JSON output, got:\n%s", out)
		}
		if data.Answer == "" || data.SessionID == "" {
			t.Errorf("incomplete JSON payload: %+v", data)
		}
	})
}

func TestE2E_LargeBodyRejected(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	big := strings.Repeat("x", 2*1024*1024)
	_, err := env.Post("/api/query", map[string]string{"query": big})
	if err == nil {
		t.Fatal("expected oversized body to be rejected")
	}
	if !strings.Contains(err.Error(), "413") {
		t.Errorf("expected HTTP 413, got %v", err)
	}
}
