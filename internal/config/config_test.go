package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreditPacks(t *testing.T) {
	packs, err := ParseCreditPacks("pri_10:10:4.99, pri_50:50:19.99")
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, 10, packs["pri_10"].Credits)
	assert.InDelta(t, 19.99, packs["pri_50"].Price, 1e-9)

	empty, err := ParseCreditPacks("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"pri_10:10", "pri:x:1", "pri:0:1", "pri:5:-1"} {
		_, err := ParseCreditPacks(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/presence")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")
	t.Setenv("PORT", "")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("CREDIT_PACKS", "pri_10:10:4.99")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3333", cfg.Port)
	assert.False(t, cfg.RunMigrations)
	assert.True(t, cfg.Paddle.Sandbox)
	assert.Contains(t, cfg.Paddle.CreditPacks, "pri_10")
}

func TestLoad_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")

	_, err := Load()
	assert.Error(t, err)
}
