package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// CourseSummary is one catalog entry.
type CourseSummary struct {
	Title       string `json:"title"`
	Instructor  string `json:"instructor,omitempty"`
	Link        string `json:"link,omitempty"`
	LessonCount int    `json:"lesson_count"`
}

// CoursesResponse represents the catalog API response.
type CoursesResponse struct {
	TotalCourses int             `json:"total_courses"`
	TotalChunks  int             `json:"total_chunks"`
	Items        []CourseSummary `json:"items"`
	Cursor       string          `json:"cursor,omitempty"`
	HasMore      bool            `json:"has_more"`
}

// CoursesCmd creates the courses command.
func CoursesCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List the course catalog",
		Long:  "Lists the stored courses with collection statistics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runCourses(limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of courses per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runCourses(limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/api/courses?limit=%d", limit)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}

	var coursesResp CoursesResponse
	if err := json.Unmarshal(resp.Data, &coursesResp); err != nil {
		return fmt.Errorf("failed to parse course list: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(coursesResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("%d courses, %d chunks\n\n", coursesResp.TotalCourses, coursesResp.TotalChunks)
	if len(coursesResp.Items) == 0 {
		fmt.Println("No courses stored yet.")
		return nil
	}

	for i, course := range coursesResp.Items {
		fmt.Printf("%d. %s (%d lessons)\n", i+1, course.Title, course.LessonCount)
		if course.Instructor != "" {
			fmt.Printf("   Instructor: %s\n", course.Instructor)
		}
		if course.Link != "" {
			fmt.Printf("   %s\n", course.Link)
		}
	}

	if coursesResp.HasMore && coursesResp.Cursor != "" {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Printf("More courses available. Use --cursor %s\n", coursesResp.Cursor)
	}

	return nil
}
