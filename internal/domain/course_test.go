package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCourse_Valid(t *testing.T) {
	course := NewCourse("Building RAG Systems", "Ada Lovelace", "https://example.com/rag", []Lesson{
		{Number: 0, Title: "Introduction"},
		{Number: 1, Title: "Chunking", Link: "https://example.com/rag/1"},
	}, time.Now())

	err := ValidateCourse(course)

	assert.NoError(t, err)
}

func TestValidateCourse_Nil(t *testing.T) {
	err := ValidateCourse(nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestValidateCourse_MissingTitle(t *testing.T) {
	course := &Course{Instructor: "Ada Lovelace"}

	err := ValidateCourse(course)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Title is required")
}

func TestValidateCourse_DuplicateLessonNumber(t *testing.T) {
	course := &Course{
		Title: "Building RAG Systems",
		Lessons: []Lesson{
			{Number: 1, Title: "Chunking"},
			{Number: 1, Title: "Retrieval"},
		},
	}

	err := ValidateCourse(course)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate lesson number")
}

func TestValidateCourse_NegativeLessonNumber(t *testing.T) {
	course := &Course{
		Title:   "Building RAG Systems",
		Lessons: []Lesson{{Number: -1, Title: "Prologue"}},
	}

	err := ValidateCourse(course)

	assert.Error(t, err)
}

func TestCourse_Lesson(t *testing.T) {
	course := &Course{
		Title: "Building RAG Systems",
		Lessons: []Lesson{
			{Number: 0, Title: "Introduction"},
			{Number: 2, Title: "Retrieval"},
		},
	}

	lesson := course.Lesson(2)
	assert.NotNil(t, lesson)
	assert.Equal(t, "Retrieval", lesson.Title)

	assert.Nil(t, course.Lesson(7))
}

func TestValidateChunk(t *testing.T) {
	lesson := 1
	chunk := &CourseChunk{
		CourseTitle:  "Building RAG Systems",
		LessonNumber: &lesson,
		ChunkIndex:   0,
		Content:      "Lesson 1 content: chunking splits documents into windows.",
	}

	assert.NoError(t, ValidateChunk(chunk))
}

func TestValidateChunk_Invalid(t *testing.T) {
	assert.Error(t, ValidateChunk(nil))
	assert.Error(t, ValidateChunk(&CourseChunk{ChunkIndex: 0, Content: "text"}))
	assert.Error(t, ValidateChunk(&CourseChunk{CourseTitle: "X", ChunkIndex: -1, Content: "text"}))
	assert.Error(t, ValidateChunk(&CourseChunk{CourseTitle: "X", ChunkIndex: 0}))

	negative := -2
	assert.Error(t, ValidateChunk(&CourseChunk{CourseTitle: "X", ChunkIndex: 0, Content: "text", LessonNumber: &negative}))
}

func TestCitation_Display(t *testing.T) {
	lesson := 4
	withLesson := Citation{CourseTitle: "Building RAG Systems", LessonNumber: &lesson}
	assert.Equal(t, "Building RAG Systems - Lesson 4", withLesson.Display())

	preamble := Citation{CourseTitle: "Building RAG Systems"}
	assert.Equal(t, "Building RAG Systems", preamble.Display())
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := assert.AnError
	err := NewDomainErrorWithCause(ErrCodeUpstream, "embedding generation failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
}
