package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"letter-portal/config"
	"letter-portal/pkg/logger"
	"letter-portal/storage/postgres"
	"letter-portal/vars"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command of the letter portal.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "letter-portal",
		Short: "Letter routing and signature workflow service",
		Long: `Registers incoming and outgoing letters, fans them out to the addressed
departments, divisions and deputies, and tracks every signature until the
letter is finished.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c",
		vars.GetEnv(vars.EnvConfigFile, ""), "path to YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// bootstrap 加载配置并初始化日志和数据库, 供各子命令复用
type bootstrap struct {
	cfg    *config.Configuration
	logger *zap.Logger
	db     *gorm.DB
}

func newBootstrap(opts *RootOptions) (*bootstrap, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("app", vars.ServiceName))

	db, err := postgres.InitDB(cfg.StorageOptions())
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &bootstrap{cfg: cfg, logger: log, db: db}, nil
}

func (b *bootstrap) close() {
	if err := postgres.Close(b.db); err != nil {
		b.logger.Warn("Close database failed", zap.Error(err))
	}
	_ = b.logger.Sync()
}
