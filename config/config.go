package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"letter-portal/storage/postgres"
	"letter-portal/vars"
)

type Configuration struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type DatabaseConfig struct {
	// Driver postgres|sqlite
	Driver string `yaml:"driver"`
	// DSN 非空时直接使用, 否则由下面的字段拼出 postgres DSN
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Env production 使用 JSON 输出, 其他使用 console
	Env      string `yaml:"env"`
	SQLLevel string `yaml:"sql_level"`
}

type WorkflowConfig struct {
	// TxTimeout 单次写操作 (含等待信件锁) 的上限
	TxTimeout time.Duration `yaml:"tx_timeout"`
}

type JobsConfig struct {
	// AuditSpec 带秒的 cron 表达式, 为空则不启动审计任务
	AuditSpec string `yaml:"audit_spec"`
}

// Default 返回内置默认配置
func Default() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Addr:         ":8081",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          postgres.DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			Username:        "root",
			Name:            "letters",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Env:      "development",
			SQLLevel: "warn",
		},
		Workflow: WorkflowConfig{
			TxTimeout: 5 * time.Second,
		},
		Jobs: JobsConfig{
			AuditSpec: "0 0 2 * * *",
		},
	}
}

// Load 读取配置: 默认值 <- YAML 文件 (path 为空则跳过) <- 环境变量
func Load(path string) (*Configuration, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) applyEnv() {
	c.Server.Addr = vars.GetEnv(vars.EnvHTTPAddr, c.Server.Addr)

	c.Database.Driver = vars.GetEnv(vars.EnvDBDriver, c.Database.Driver)
	c.Database.DSN = vars.GetEnv(vars.EnvDBDSN, c.Database.DSN)
	c.Database.Host = vars.GetEnv(vars.EnvPGHost, c.Database.Host)
	c.Database.Port = vars.GetEnv(vars.EnvPGPort, c.Database.Port)
	c.Database.Username = vars.GetEnv(vars.EnvPGUser, c.Database.Username)
	c.Database.Password = vars.GetEnv(vars.EnvPGPwd, c.Database.Password)
	c.Database.Name = vars.GetEnv(vars.EnvPGDB, c.Database.Name)

	c.Logging.Level = vars.GetEnv(vars.EnvLogLevel, c.Logging.Level)
	c.Logging.Env = vars.GetEnv(vars.EnvLogEnv, c.Logging.Env)
}

func (c *Configuration) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case postgres.DriverPostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("database: host or dsn is required"))
		}
	case postgres.DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database: dsn (file path) is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("database: unsupported driver %q", c.Database.Driver))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server: addr is required"))
	}
	if c.Workflow.TxTimeout <= 0 {
		errs = append(errs, fmt.Errorf("workflow: tx_timeout must be positive, got %s", c.Workflow.TxTimeout))
	}
	return errors.Join(errs...)
}

// DSN 返回实际使用的连接串
func (c *Configuration) DSN() string {
	d := c.Database
	if d.DSN != "" || d.Driver == postgres.DriverSQLite {
		return d.DSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Username, d.Password, d.Name, d.Port, d.SSLMode)
}

// StorageOptions 转换为存储层参数
func (c *Configuration) StorageOptions() postgres.Options {
	return postgres.Options{
		Driver:          c.Database.Driver,
		DSN:             c.DSN(),
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		LogLevel:        c.Logging.SQLLevel,
	}
}

// Log 输出生效配置, 密码脱敏
func (c *Configuration) Log(logger *zap.Logger) {
	logger.Info("Application configuration",
		zap.String("addr", c.Server.Addr),
		zap.Duration("read_timeout", c.Server.ReadTimeout),
		zap.Duration("write_timeout", c.Server.WriteTimeout),
		zap.String("database_driver", c.Database.Driver),
		zap.String("database_host", c.Database.Host),
		zap.String("database_name", c.Database.Name),
		zap.String("database_password", redact(c.Database.Password)),
		zap.Duration("tx_timeout", c.Workflow.TxTimeout),
		zap.String("audit_spec", c.Jobs.AuditSpec),
	)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
