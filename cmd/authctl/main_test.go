package main

import (
	"bytes"
	"strings"
	"testing"

	"UserService/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashCmd(t *testing.T) {
	h := auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost)

	t.Run("argument", func(t *testing.T) {
		out, err := run(t, "", "hash", "--cost", "4", "s3cret")
		require.NoError(t, err)
		assert.True(t, h.Verify("s3cret", strings.TrimSpace(out)))
	})
	t.Run("stdin", func(t *testing.T) {
		out, err := run(t, "from stdin\n", "hash", "--cost", "4")
		require.NoError(t, err)
		assert.True(t, h.Verify("from stdin", strings.TrimSpace(out)))
	})
	t.Run("argon2id", func(t *testing.T) {
		out, err := run(t, "", "hash", "--algorithm", "argon2id", "pw")
		require.NoError(t, err)
		digest := strings.TrimSpace(out)
		assert.True(t, strings.HasPrefix(digest, "$argon2id$"))
		assert.True(t, h.Verify("pw", digest))
	})
	t.Run("empty", func(t *testing.T) {
		_, err := run(t, "\n", "hash")
		assert.Error(t, err)
	})
}

func TestMigrateCmd_RequiresDSN(t *testing.T) {
	t.Setenv("PG_DSN", "")
	_, err := run(t, "", "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PG_DSN")

	_, err = run(t, "", "migrate", "sideways")
	assert.Error(t, err)
}
