package domain

import "fmt"

// CourseChunk is the atomic retrieval unit: one overlapping window of
// sentence-bounded lesson text with denormalized course context. Chunks are
// immutable; re-ingesting a course replaces all of its chunks together.
type CourseChunk struct {
	CourseTitle  string
	LessonNumber *int // nil for course-level preamble text
	ChunkIndex   int  // zero-based, unique within the course
	Content      string
	Embedding    []float32
}

// Citation references the source of a retrieved chunk, attached to answers.
type Citation struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Link         string `json:"link,omitempty"`
}

// Display renders the citation as shown to end users.
func (c Citation) Display() string {
	if c.LessonNumber != nil {
		return fmt.Sprintf("%s - Lesson %d", c.CourseTitle, *c.LessonNumber)
	}
	return c.CourseTitle
}

// ValidateChunk validates a CourseChunk instance
func ValidateChunk(c *CourseChunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.CourseTitle == "" {
		return fmt.Errorf("chunk CourseTitle is required")
	}

	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk ChunkIndex must be non-negative: %d", c.ChunkIndex)
	}

	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}

	if c.LessonNumber != nil && *c.LessonNumber < 0 {
		return fmt.Errorf("chunk LessonNumber must be non-negative: %d", *c.LessonNumber)
	}

	return nil
}
