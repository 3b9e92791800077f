package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("server and database", func(t *testing.T) {
		t.Setenv("SITESETUP_ADDR", ":9000")
		t.Setenv("SITESETUP_DB", "/tmp/site.db")
		t.Setenv("SITESETUP_DB_DRIVER", "sqlite")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.Equal(t, "/tmp/site.db", cfg.Database.Path)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
	})

	t.Run("smtp port ignores garbage", func(t *testing.T) {
		t.Setenv("SITESETUP_SMTP_HOST", "smtp.example.com")
		t.Setenv("SITESETUP_SMTP_PORT", "not-a-port")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
		assert.Equal(t, 587, cfg.Mail.Port)
		assert.True(t, cfg.MailEnabled())
	})

	t.Run("admin token appends a user", func(t *testing.T) {
		t.Setenv("SITESETUP_ADMIN_TOKEN", "secret")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		require.Len(t, cfg.Auth.Users, 1)
		assert.Equal(t, "admin", cfg.Auth.Users[0].Name)
		assert.Equal(t, "administrator", cfg.Auth.Users[0].Role)
	})
}
