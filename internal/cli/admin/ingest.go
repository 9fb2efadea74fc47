package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/coursepilot/internal/config"
	"github.com/cloo-solutions/coursepilot/internal/database"
	"github.com/cloo-solutions/coursepilot/internal/openai"
	"github.com/cloo-solutions/coursepilot/internal/repository"
	"github.com/cloo-solutions/coursepilot/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest course documents into the vector store",
		Long: "Parse the configured document source and store course metadata " +
			"and content chunks. Documents whose course title is already stored are skipped.",
		RunE: runIngest,
	}

	cmd.Flags().String("dir", "", "Docs folder to ingest (overrides COURSEPILOT_DOCS_DIR)")
	cmd.Flags().Bool("clear", false, "Clear both collections before ingesting")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to embed documents")
	}

	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.DocsDir = dir
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
	})

	store := service.NewVectorStore(client,
		repository.NewCatalogRepository(pool),
		repository.NewChunkRepository(pool),
		repository.NewTxRunner(pool),
		cfg.MaxResults,
	)
	ingestSvc := service.NewIngestService(store, service.ChunkConfig{
		MaxChars: cfg.ChunkSize,
		Overlap:  cfg.ChunkOverlap,
	})

	source, err := documentSource(ctx, cfg)
	if err != nil {
		return err
	}

	clearExisting, _ := cmd.Flags().GetBool("clear")
	if clearExisting {
		log.Println("clearing existing collections before ingest")
	}

	report, err := ingestSvc.IngestSource(ctx, source, clearExisting)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingestion complete: %d courses added (%d chunks), %d skipped, %d failed\n",
		report.CoursesAdded, report.ChunksAdded, report.Skipped, report.Failed)
	return nil
}
