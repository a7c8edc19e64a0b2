package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmonitor/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEWS_MONITOR_CONFIG", "TARGET_URL", "DATABASE_DRIVER", "DATABASE_PATH",
		"OPENAI_API_KEY", "OPENAI_MODEL", "CHECK_INTERVAL_MINUTES", "EMAIL_PASSWORD",
		"EMAIL_FROM", "EMAIL_TO", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckConfigPrintsRedactedConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
analyzer:
  apiKey: sk-secret
notifications:
  email:
    from: monitor@example.com
    to: editor@example.com
    password: hunter2
`)

	out, err := execute("check-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")
	assert.Contains(t, out, "****")
	assert.NotContains(t, out, "sk-secret")
	assert.NotContains(t, out, "hunter2")
}

func TestCheckConfigRejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
scheduler:
  cronExpression: "every now and then"
`)

	_, err := execute("check-config", "--config", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestStatusOnEmptyStore(t *testing.T) {
	clearEnv(t)
	dbPath := filepath.Join(t.TempDir(), "monitor.db")
	path := writeConfig(t, "database:\n  driver: sqlite3\n  dsn: "+dbPath+"\n")

	out, err := execute("status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Total processed: 0")
	assert.Contains(t, out, "Processed in last 24h: 0")
}
