package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ResetCmd creates the reset command.
func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Clear a conversation session",
		Long:  "Empties a session's history so the next question starts fresh.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(args[0])
		},
	}

	return cmd
}

func runReset(sessionID string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete("/api/sessions/" + sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Printf("Session %s cleared\n", sessionID)
	return nil
}
