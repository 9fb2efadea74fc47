package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the query API request.
type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// AskSource is one citation attached to an answer.
type AskSource struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// AskResponse represents the query API response.
type AskResponse struct {
	Answer    string      `json:"answer"`
	Sources   []AskSource `json:"sources"`
	SessionID string      `json:"session_id"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the course materials",
		Long: "Sends a question to the assistant. Pass --session to continue a " +
			"previous conversation; the session id is printed with each answer.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(args[0], sessionID, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue a conversation")

	return cmd
}

func runAsk(question, sessionID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/query", AskRequest{
		Query:     question,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)

	if len(askResp.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for _, source := range askResp.Sources {
			if source.Link != "" {
				fmt.Printf("  - %s (%s)\n", source.Text, source.Link)
			} else {
				fmt.Printf("  - %s\n", source.Text)
			}
		}
	}

	fmt.Printf("\n%s\nSession: %s\n", strings.Repeat("-", 40), askResp.SessionID)
	return nil
}
