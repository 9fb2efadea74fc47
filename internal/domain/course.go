package domain

import (
	"fmt"
	"time"
)

// Lesson represents a single lesson within a course. Lessons exist only
// embedded in their course's lesson list; chunks reference them by number.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Course represents one ingested course document. The title is the primary
// key: ingestion deduplicates on it and chunk rows reference it.
type Course struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []Lesson
	CreatedAt  time.Time
}

// NewCourse creates a new Course instance
func NewCourse(title, instructor, link string, lessons []Lesson, createdAt time.Time) *Course {
	return &Course{
		Title:      title,
		Instructor: instructor,
		Link:       link,
		Lessons:    lessons,
		CreatedAt:  createdAt,
	}
}

// Lesson returns the lesson with the given number, or nil if absent.
func (c *Course) Lesson(number int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].Number == number {
			return &c.Lessons[i]
		}
	}
	return nil
}

// ValidateCourse validates a Course instance
func ValidateCourse(c *Course) error {
	if c == nil {
		return fmt.Errorf("course cannot be nil")
	}

	if c.Title == "" {
		return fmt.Errorf("course Title is required")
	}

	seen := make(map[int]struct{}, len(c.Lessons))
	for _, lesson := range c.Lessons {
		if lesson.Number < 0 {
			return fmt.Errorf("lesson number must be non-negative: %d", lesson.Number)
		}
		if _, ok := seen[lesson.Number]; ok {
			return fmt.Errorf("duplicate lesson number: %d", lesson.Number)
		}
		seen[lesson.Number] = struct{}{}
	}

	return nil
}
