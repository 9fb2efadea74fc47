package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/coursepilot/internal/config"
	"github.com/cloo-solutions/coursepilot/internal/database"
	"github.com/cloo-solutions/coursepilot/internal/repository"
)

// ClearCmd returns the clear command
func ClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all courses and chunks from the vector store",
		RunE:  runClear,
	}

	cmd.Flags().Bool("yes", false, "Confirm deletion without prompting")

	return cmd
}

func runClear(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("refusing to clear without --yes")
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	chunkRepo := repository.NewChunkRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)

	if err := chunkRepo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if err := catalogRepo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	fmt.Println("Vector store cleared")
	return nil
}
