package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Workflow.TxTimeout)
	assert.Contains(t, cfg.DSN(), "host=localhost")
	assert.Contains(t, cfg.DSN(), "dbname=letters")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
database:
  driver: sqlite
  dsn: /tmp/letters.db
workflow:
  tx_timeout: 2s
jobs:
  audit_spec: ""
`)
	t.Setenv("LETTER_HTTP_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/letters.db", cfg.DSN())
	assert.Equal(t, 2*time.Second, cfg.Workflow.TxTimeout)
	assert.Empty(t, cfg.Jobs.AuditSpec)

	opts := cfg.StorageOptions()
	assert.Equal(t, "sqlite", opts.Driver)
	assert.Equal(t, "/tmp/letters.db", opts.DSN)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "database:\n  driver: oracle\n"))
	assert.ErrorContains(t, err, "unsupported driver")

	_, err = Load(writeConfig(t, "database:\n  driver: sqlite\n"))
	assert.ErrorContains(t, err, "dsn")

	_, err = Load(writeConfig(t, "workflow:\n  tx_timeout: 0s\n"))
	assert.ErrorContains(t, err, "tx_timeout")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLog_RedactsPassword(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := Default()
	cfg.Database.Password = "hunter2"

	cfg.Log(zap.New(core))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["database_password"])
}
