package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/coursepilot/internal/api"
	"github.com/cloo-solutions/coursepilot/internal/service"
)

type CatalogService interface {
	Stats(ctx context.Context) (*service.StoreStats, error)
	ListCourses(ctx context.Context, input service.ListCoursesInput) (*service.ListCoursesOutput, error)
}

type CoursesHandler struct {
	svc CatalogService
}

func NewCoursesHandler(svc CatalogService) *CoursesHandler {
	return &CoursesHandler{svc: svc}
}

type CourseSummary struct {
	Title       string `json:"title"`
	Instructor  string `json:"instructor,omitempty"`
	Link        string `json:"link,omitempty"`
	LessonCount int    `json:"lesson_count"`
}

type CoursesResponse struct {
	TotalCourses int             `json:"total_courses"`
	TotalChunks  int             `json:"total_chunks"`
	Items        []CourseSummary `json:"items"`
	Cursor       string          `json:"cursor,omitempty"`
	HasMore      bool            `json:"has_more"`
}

const maxListLimit = 100

func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxListLimit {
				limit = maxListLimit
			}
		}
	}

	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	output, err := h.svc.ListCourses(r.Context(), service.ListCoursesInput{
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]CourseSummary, len(output.Items))
	for i, c := range output.Items {
		items[i] = CourseSummary{
			Title:       c.Title,
			Instructor:  c.Instructor,
			Link:        c.Link,
			LessonCount: len(c.Lessons),
		}
	}

	api.Success(w, http.StatusOK, CoursesResponse{
		TotalCourses: stats.CourseCount,
		TotalChunks:  stats.ChunkCount,
		Items:        items,
		Cursor:       output.Cursor,
		HasMore:      output.HasMore,
	})
}
