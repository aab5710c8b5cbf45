package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letter-portal/api/handler"
	"letter-portal/api/middleware"
	"letter-portal/api/router"
	"letter-portal/job"
	"letter-portal/pkg/metrics"
	"letter-portal/service"
	"letter-portal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audit job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, b, autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "migrate the schema before serving")
	return cmd
}

func runServe(ctx context.Context, b *bootstrap, autoMigrate bool) error {
	b.cfg.Log(b.logger)

	if autoMigrate {
		if err := postgres.Migrate(b.db); err != nil {
			return err
		}
	}

	// 1. 存储层
	letterRepo := postgres.NewLetterRepo(b.db)
	directoryRepo := postgres.NewDirectoryRepo(b.db)
	mc := metrics.NewMetricsCollector()

	// 2. 业务层
	letterSvc := service.NewLetterService(letterRepo, directoryRepo, b.logger, mc, b.cfg.Workflow.TxTimeout)

	// 3. 定时审计
	if spec := b.cfg.Jobs.AuditSpec; spec != "" {
		c, err := job.StartCronJob(spec, letterSvc, b.logger, mc)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	// 4. API 层
	if b.cfg.Logging.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	router.RegisterRoutes(r,
		middleware.NewRequestMiddleware(b.logger, mc),
		handler.NewLetterHandler(letterSvc),
		handler.NewSystemHandler(b.db, mc))

	srv := &http.Server{
		Addr:         b.cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
		IdleTimeout:  b.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("Server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	b.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
