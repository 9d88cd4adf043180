package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/newsdesk/internal/api"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "newsbot dev\n", execute(t, "version"))
}

func TestSources(t *testing.T) {
	out := execute(t, "sources", "--category", "Internacional")
	assert.Contains(t, out, "BBC Mundo")
	assert.NotContains(t, out, "Pachamama Radio")
}

func TestMigrateAndStats(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out := execute(t, "migrate", "--db", db)
	assert.Contains(t, out, "create noticias")
	assert.Contains(t, out, "full text search")

	out = execute(t, "stats", "--db", db)
	assert.Contains(t, out, "Total: 0")
}

func TestMigrate_CreatesDirectory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "data", "n.db")
	out := execute(t, "migrate", "--db", db)
	assert.Contains(t, out, "create noticias")
	assert.FileExists(t, db)
}

func TestToken(t *testing.T) {
	t.Setenv("NEWSDESK_API_SECRET", "s3cret")
	out := strings.TrimSpace(execute(t, "token", "--subject", "ops", "--ttl", "1h"))

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(out, claims, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
}

func TestToken_NoSecret(t *testing.T) {
	t.Setenv("NEWSDESK_API_SECRET", "")
	t.Chdir(t.TempDir())
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	assert.ErrorIs(t, cmd.Execute(), api.ErrNoSecret)
}

func TestPurge(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	out := execute(t, "purge", "--db", db)
	assert.Contains(t, out, "Deleted 0 items from Peru21")
}
