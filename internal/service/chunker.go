package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cloo-solutions/coursepilot/internal/domain"
)

// ChunkConfig controls how lesson bodies are split into retrieval chunks.
// Overlap must be strictly less than MaxChars or packing cannot advance.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 800,
		Overlap:  100,
	}
}

func (c ChunkConfig) validate() error {
	if c.MaxChars <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.MaxChars)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChars {
		return domain.ErrInvalidChunkConfig
	}
	return nil
}

// ParsedDocument is the chunker's output: one course plus its ordered chunks.
type ParsedDocument struct {
	Course domain.Course
	Chunks []domain.CourseChunk
}

var lessonMarkerRe = regexp.MustCompile(`(?m)^Lesson\s+(\d+):\s*(.+)$`)

// ParseCourseDocument parses a plain-text course document into a course with
// lessons and an ordered sequence of overlapping content chunks.
//
// Document layout:
//
//	Course Title: <title>          (required)
//	Course Link: <url>             (optional)
//	Course Instructor: <name>      (optional)
//
//	Lesson 0: Introduction
//	Lesson Link: <url>             (optional)
//	<lesson body...>
//
// Text before the first lesson marker becomes course-level preamble chunks
// with no lesson number.
func ParseCourseDocument(text string, cfg ChunkConfig) (*ParsedDocument, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	header, body := splitHeader(text)

	course := domain.Course{
		Title:      header["course title"],
		Link:       header["course link"],
		Instructor: header["course instructor"],
		CreatedAt:  time.Now().UTC(),
	}
	if course.Title == "" {
		return nil, domain.ErrMissingCourseTitle
	}

	doc := &ParsedDocument{Course: course}

	preamble, lessons := splitLessons(body)

	if strings.TrimSpace(preamble) != "" {
		doc.appendChunks(nil, preamble, cfg)
	}

	for _, seg := range lessons {
		lesson := domain.Lesson{Number: seg.number, Title: seg.title, Link: seg.link}
		doc.Course.Lessons = append(doc.Course.Lessons, lesson)
		num := seg.number
		doc.appendChunks(&num, seg.body, cfg)
	}

	if err := domain.ValidateCourse(&doc.Course); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid course document", err)
	}

	return doc, nil
}

// appendChunks chunks one body of text and appends the results with
// course-wide contiguous indices. The first chunk of each segment carries a
// synthetic context header so it still names its source when surfaced alone.
func (d *ParsedDocument) appendChunks(lessonNumber *int, body string, cfg ChunkConfig) {
	for i, content := range chunkSentences(body, cfg) {
		if i == 0 {
			if lessonNumber != nil {
				content = fmt.Sprintf("Lesson %d content: %s", *lessonNumber, content)
			} else {
				content = fmt.Sprintf("Course %s content: %s", d.Course.Title, content)
			}
		}
		d.Chunks = append(d.Chunks, domain.CourseChunk{
			CourseTitle:  d.Course.Title,
			LessonNumber: lessonNumber,
			ChunkIndex:   len(d.Chunks),
			Content:      content,
		})
	}
}

// splitHeader consumes leading "Key: value" lines and returns them lowercased
// along with the remaining body.
func splitHeader(text string) (map[string]string, string) {
	header := make(map[string]string)
	lines := strings.Split(text, "\n")

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if len(header) > 0 {
				i++
				break
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || lessonMarkerRe.MatchString(line) {
			break
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !strings.HasPrefix(key, "course ") {
			break
		}
		header[key] = strings.TrimSpace(value)
	}

	return header, strings.Join(lines[i:], "\n")
}

type lessonSegment struct {
	number int
	title  string
	link   string
	body   string
}

// splitLessons segments the body on "Lesson <N>: <title>" markers. Each
// marker may be followed by a "Lesson Link:" line before the lesson body.
func splitLessons(body string) (preamble string, segments []lessonSegment) {
	matches := lessonMarkerRe.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body, nil
	}

	preamble = body[:matches[0][0]]

	for i, m := range matches {
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		number, err := strconv.Atoi(body[m[2]:m[3]])
		if err != nil {
			continue
		}

		seg := lessonSegment{
			number: number,
			title:  strings.TrimSpace(body[m[4]:m[5]]),
			body:   body[m[1]:end],
		}

		seg.link, seg.body = extractLessonLink(seg.body)
		segments = append(segments, seg)
	}

	return preamble, segments
}

func extractLessonLink(body string) (link, rest string) {
	trimmed := strings.TrimLeft(body, "\n")
	line, remainder, _ := strings.Cut(trimmed, "\n")
	if value, ok := strings.CutPrefix(strings.TrimSpace(line), "Lesson Link:"); ok {
		return strings.TrimSpace(value), remainder
	}
	return "", body
}

// chunkSentences splits text into sentences and greedily packs them into
// chunks of at most cfg.MaxChars, repeating the trailing sentences of each
// closed chunk (up to cfg.Overlap chars) at the start of the next one.
func chunkSentences(text string, cfg ChunkConfig) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(sentences) {
		size := 0
		end := start
		for end < len(sentences) {
			add := len(sentences[end])
			if end > start {
				add++ // joining space
			}
			if size+add > cfg.MaxChars && end > start {
				break
			}
			size += add
			end++
		}

		chunks = append(chunks, strings.Join(sentences[start:end], " "))
		if end >= len(sentences) {
			break
		}

		// Walk back from the chunk boundary collecting trailing sentences
		// that fit in the overlap budget.
		next := end
		budget := cfg.Overlap
		for next > start+1 && budget >= len(sentences[next-1]) {
			budget -= len(sentences[next-1]) + 1
			next--
		}
		start = next
	}

	return chunks
}

// Abbreviations that end with a period but do not end a sentence.
var abbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {}, "cf": {},
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {},
	"fig": {}, "no": {}, "vol": {}, "approx": {},
}

// splitSentences breaks text on sentence boundaries, tolerating common
// abbreviations and decimal numbers so mid-sentence periods do not split.
func splitSentences(text string) []string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return nil
	}

	runes := []rune(clean)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			// Mid-token period: decimal number, URL, or inline abbreviation.
			continue
		}
		if r == '.' && isAbbreviation(runes, start, i) {
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// isAbbreviation reports whether the period at position i terminates a known
// abbreviation rather than a sentence.
func isAbbreviation(runes []rune, start, i int) bool {
	wordStart := i
	for wordStart > start && !unicode.IsSpace(runes[wordStart-1]) {
		wordStart--
	}
	word := strings.ToLower(strings.Trim(string(runes[wordStart:i]), ".,;:()"))
	_, ok := abbreviations[word]
	return ok
}
