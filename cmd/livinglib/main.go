package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/livinglib/internal/config"
	"github.com/xxxsen/livinglib/internal/db"
	"github.com/xxxsen/livinglib/internal/handler"
	"github.com/xxxsen/livinglib/internal/job"
	"github.com/xxxsen/livinglib/internal/middleware"
	"github.com/xxxsen/livinglib/internal/schedule"
)

func main() {
	var configPath string
	var fileID int64

	rootCmd := &cobra.Command{
		Use:   "livinglib",
		Short: "living library pdf search backend",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "chunk and embed unprocessed pdf files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, fileID)
		},
	}
	ingestCmd.Flags().Int64Var(&fileID, "file-id", 0, "ingest only this file_asset id")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			logutil.GetLogger(cmd.Context()).Info("migrations applied")
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, migrateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runIngest(ctx context.Context, cfg *config.Config, fileID int64) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.embedder.Init(ctx); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	if fileID > 0 {
		res, err := a.ingest.IngestFile(ctx, fileID)
		if err != nil {
			return err
		}
		return printResult(res)
	}
	res, err := a.ingest.Run(ctx)
	if err != nil {
		return err
	}
	return printResult(res)
}

func printResult(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("local_dir", cfg.Storage.LocalDir),
		zap.Bool("remote_storage", cfg.RemoteEnabled()),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := db.ApplyMigrations(a.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	// search answers 503 until the provider is ready; the server still serves pages
	_ = a.embedder.Init(ctx)

	ingestJob := job.NewIngestJob(a.ingest)
	if cfg.Ingest.Cron != "" {
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(ingestJob, cfg.Ingest.Cron); err != nil {
			return fmt.Errorf("schedule ingest job: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		if cfg.Ingest.RunOnStart {
			if err := scheduler.Trigger(ingestJob.Name()); err != nil {
				return err
			}
		}
	} else if cfg.Ingest.RunOnStart {
		var startup sync.WaitGroup
		defer startup.Wait()
		startup.Add(1)
		go func() {
			defer startup.Done()
			if err := ingestJob.Run(ctx); err != nil {
				logutil.GetLogger(ctx).Error("startup ingestion failed", zap.Error(err))
			}
		}()
	}

	deps := handler.RouterDeps{
		Search:    handler.NewSearchHandler(a.search),
		Materials: handler.NewMaterialHandler(a.artifacts),
		Health:    handler.NewHealthHandler(a.db, a.embedder),
	}
	if cfg.Render.RateLimitMs > 0 {
		deps.PageLimit = middleware.RateLimit(time.Duration(cfg.Render.RateLimitMs) * time.Millisecond)
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^/api/v1/pdf/`})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
