package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspass/backend/internal/auth"
	"github.com/campuspass/backend/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "campuspass")
	userID := uuid.New()

	token, err := run(t, "token", "--user", userID.String(), "--role", "admin", "--email", "ops@college.edu")
	require.NoError(t, err)

	p, err := auth.NewJWTService("cli-secret", "campuspass", time.Hour).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.Equal(t, "ops@college.edu", p.Email)
}

func TestTokenCommandRejectsInput(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	_, err := run(t, "token", "--role", "speaker")
	assert.Error(t, err)
	_, err = run(t, "token", "--user", "nope")
	assert.Error(t, err)
}

func TestRenderSample(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	dir := t.TempDir()

	for _, kind := range []string{"ticket", "certificate"} {
		path := filepath.Join(dir, kind+".pdf")
		out, err := run(t, "render", "--sample", "--kind", kind, "-o", path)
		require.NoError(t, err, kind)
		assert.Contains(t, out, "wrote "+path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")), kind)
	}

	_, err := run(t, "render", "--sample", "--kind", "badge")
	assert.Error(t, err)
}

func TestArchiveRequiresBucket(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("AWS_S3_ARCHIVE_BUCKET", "")

	_, err := run(t, "archive", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_S3_ARCHIVE_BUCKET")

	_, err = run(t, "archive", "url")
	assert.Error(t, err)
}
