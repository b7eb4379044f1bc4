package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/klugworks/klugstore/internal/answer"
	"github.com/klugworks/klugstore/internal/api/handlers"
	"github.com/klugworks/klugstore/internal/chunker"
	"github.com/klugworks/klugstore/internal/config"
	"github.com/klugworks/klugstore/internal/database"
	"github.com/klugworks/klugstore/internal/embedding"
	"github.com/klugworks/klugstore/internal/engine"
	"github.com/klugworks/klugstore/internal/jobs"
	"github.com/klugworks/klugstore/internal/resolver"
	"github.com/klugworks/klugstore/internal/server"
	"github.com/klugworks/klugstore/internal/store"
	"github.com/klugworks/klugstore/internal/telemetry"
	"github.com/klugworks/klugstore/internal/vector"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the knowledge store server",
		Long:  "Start the klugstore API server and background reconciler",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("KLUG_OPENAI_API_KEY is required: the store cannot embed without it")
	}

	embedder := embedding.NewClient(embedding.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		Dimensions: cfg.EmbeddingDimensions,
	})

	entryRepo := store.NewEntryRepository(pool)
	vectorIndex := vector.NewIndex(pool)

	eng := engine.New(
		entryRepo,
		vectorIndex,
		embedder,
		resolver.New(resolver.Config{Threshold: cfg.ConflictThreshold}),
		chunker.New(chunker.DefaultConfig()),
		engine.Options{
			DefaultTopK:   cfg.DefaultTopK,
			ResolutionTTL: cfg.ResolutionTTL,
		},
	)

	reconcileRepo := store.NewReconcileRepository(pool)
	reconciler := jobs.NewReconciler(reconcileRepo, entryRepo, vectorIndex, embedder)
	worker := jobs.NewWorker(reconciler, cfg.ReconcileInterval)
	go worker.Start(ctx)
	log.Println("reconciler started")

	composer := answer.NewComposer(cfg.OpenAIAPIKey, cfg.AnswerModel)

	if !cfg.HasAdminToken() {
		log.Println("warning: KLUG_ADMIN_TOKEN not set, delete and import are disabled")
	}

	router := server.NewRouter(server.RouterConfig{
		AdminToken:        cfg.AdminToken,
		EntryHandler:      handlers.NewEntryHandler(eng),
		QueryHandler:      handlers.NewQueryHandler(eng, composer),
		ResolutionHandler: handlers.NewResolutionHandler(eng),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
