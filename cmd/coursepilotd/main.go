package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/coursepilot/internal/cli"
	"github.com/cloo-solutions/coursepilot/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coursepilotd",
		Short: "Coursepilot daemon and CLI",
		Long:  "Coursepilot daemon for running the API server and managing the course vector store",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.ClearCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
